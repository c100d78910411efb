// Package fiji drives a local Fiji (ImageJ) installation in headless mode.
// Every command runs as a generated macro in a fresh process; shapes come
// back through a text file written by the macro.
package fiji

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/tiff"

	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// Name identifies the engine in configuration and errors.
const Name = "fiji"

const (
	imageFile = "input.tif"
	macroFile = "run.ijm"
	roiFile   = "rois.txt"

	modeROIs      = "rois"
	modeSelection = "selection"
)

// ExecFunc runs the Fiji executable and returns its combined output.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Engine is a headless Fiji installation.
type Engine struct {
	// Dir is the Fiji.app directory. Ignored when Executable is set.
	Dir string
	// Executable overrides the launcher lookup.
	Executable string
	// Exec runs the launcher; defaults to os/exec.
	Exec ExecFunc

	mu      sync.Mutex
	exe     string
	running bool
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine for the installation in dir.
func New(dir string) *Engine {
	return &Engine{Dir: dir}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// Start locates the launcher. A missing installation is ErrNotStarted.
func (e *Engine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exe, err := e.locate()
	if err != nil {
		return fmt.Errorf("%w: %w", engine.ErrNotStarted, err)
	}
	e.exe = exe
	e.running = true
	slog.Debug("fiji launcher found", "engine", Name, "path", exe)
	return nil
}

func (e *Engine) locate() (string, error) {
	if e.Executable != "" {
		return exec.LookPath(e.Executable)
	}
	if e.Dir == "" {
		return exec.LookPath("ImageJ-" + launcherSuffix())
	}
	for _, name := range launcherNames() {
		p := filepath.Join(e.Dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no Fiji launcher in %s", e.Dir)
}

func launcherSuffix() string {
	switch runtime.GOOS {
	case "windows":
		return "win64.exe"
	case "darwin":
		return "macosx"
	default:
		return "linux64"
	}
}

func launcherNames() []string {
	return []string{
		"ImageJ-" + launcherSuffix(),
		filepath.Join("Contents", "MacOS", "ImageJ-macosx"),
		"fiji-linux-x64",
		"fiji",
	}
}

// Stop implements engine.Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return nil
}

// Show writes the image to a private temporary directory.
func (e *Engine) Show(_ context.Context, img *raster.Image) (*engine.Display, error) {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return nil, engine.ErrNotStarted
	}

	dir, err := os.MkdirTemp("", "treerings-fiji-")
	if err != nil {
		return nil, err
	}
	if err := writeTIFF(filepath.Join(dir, imageFile), img); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &engine.Display{ID: filepath.Base(dir), Image: img, Handle: dir}, nil
}

func writeTIFF(path string, img *raster.Image) error {
	f, err := os.Create(path) //nolint:gosec // G304: path inside our temp dir
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img.Pixels, &tiff.Options{Compression: tiff.Uncompressed}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode TIFF: %w", err)
	}
	return f.Close()
}

// Close removes the display's temporary files.
func (e *Engine) Close(d *engine.Display) error {
	dir, ok := displayDir(d)
	if !ok {
		return nil
	}
	return os.RemoveAll(dir)
}

func displayDir(d *engine.Display) (string, bool) {
	if d == nil {
		return "", false
	}
	dir, ok := d.Handle.(string)
	return dir, ok && dir != ""
}

// Run executes command with the options line on the displayed image. The
// ROI manager entries are returned under "rois"; without any, the active
// selection is returned under "selection".
func (e *Engine) Run(ctx context.Context, d *engine.Display, command, options string) (*engine.Result, error) {
	e.mu.Lock()
	exe, running := e.exe, e.running
	e.mu.Unlock()
	if !running {
		return nil, engine.ErrNotStarted
	}
	dir, ok := displayDir(d)
	if !ok {
		return nil, errors.New("display has no image file")
	}

	macro := filepath.Join(dir, macroFile)
	script := Macro(filepath.Join(dir, imageFile), command, options, filepath.Join(dir, roiFile))
	if err := os.WriteFile(macro, []byte(script), 0o600); err != nil {
		return nil, err
	}

	run := e.Exec
	if run == nil {
		run = execCombined
	}
	out, err := run(ctx, exe, "--headless", "--console", "-macro", macro)
	if err != nil {
		return nil, fmt.Errorf("fiji: %w: %s", err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(filepath.Join(dir, roiFile)) //nolint:gosec // G304: path inside our temp dir
	if err != nil {
		return nil, fmt.Errorf("macro wrote no shapes: %w", err)
	}
	defer func() { _ = f.Close() }()

	mode, shapes, err := ParseShapes(f)
	if err != nil {
		return nil, err
	}
	return resultFor(mode, shapes), nil
}

func execCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // G204: configured launcher
}

func resultFor(mode string, shapes []region.Region) *engine.Result {
	meta := make(map[string]any)
	switch {
	case len(shapes) == 0:
	case mode == modeSelection:
		meta[modeSelection] = shapes[0]
	default:
		meta[modeROIs] = shapes
	}
	return &engine.Result{Metadata: meta}
}

// Macro returns the ImageJ macro that opens image, runs command and dumps
// the resulting shapes to out.
func Macro(image, command, options, out string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "setBatchMode(true);\n")
	fmt.Fprintf(&b, "open(%s);\n", quote(image))
	fmt.Fprintf(&b, "run(%s, %s);\n", quote(command), quote(options))
	fmt.Fprintf(&b, "f = File.open(%s);\n", quote(out))
	b.WriteString(`n = roiManager("count");
if (n > 0) {
	print(f, "` + modeROIs + `");
	for (i = 0; i < n; i++) {
		roiManager("select", i);
		print(f, "# " + Roi.getName());
		getSelectionCoordinates(xs, ys);
		for (j = 0; j < xs.length; j++) print(f, d2s(xs[j], 4) + "," + d2s(ys[j], 4));
	}
} else if (selectionType() >= 0) {
	print(f, "` + modeSelection + `");
	print(f, "# " + getTitle());
	getSelectionCoordinates(xs, ys);
	for (j = 0; j < xs.length; j++) print(f, d2s(xs[j], 4) + "," + d2s(ys[j], 4));
} else {
	print(f, "` + modeROIs + `");
}
File.close(f);
`)
	return b.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ParseShapes reads the macro output: a mode line, then per shape a
// "# name" header followed by "x,y" vertex lines.
func ParseShapes(r io.Reader) (string, []region.Region, error) {
	sc := bufio.NewScanner(r)
	mode := ""
	var shapes []region.Region
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
		case mode == "":
			if text != modeROIs && text != modeSelection {
				return "", nil, fmt.Errorf("line %d: unknown mode %q", line, text)
			}
			mode = text
		case strings.HasPrefix(text, "#"):
			shapes = append(shapes, region.Region{Name: strings.TrimSpace(strings.TrimPrefix(text, "#"))})
		default:
			if len(shapes) == 0 {
				return "", nil, fmt.Errorf("line %d: vertex before shape header", line)
			}
			p, err := parseVertex(text)
			if err != nil {
				return "", nil, fmt.Errorf("line %d: %w", line, err)
			}
			last := &shapes[len(shapes)-1]
			last.Polygon = append(last.Polygon, p)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}

	kept := shapes[:0]
	for _, s := range shapes {
		if len(s.Polygon) >= 3 {
			kept = append(kept, s)
		}
	}
	return mode, kept, nil
}

func parseVertex(text string) (utils.Point, error) {
	xs, ys, ok := strings.Cut(text, ",")
	if !ok {
		return utils.Point{}, fmt.Errorf("malformed vertex %q", text)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return utils.Point{}, fmt.Errorf("malformed vertex %q: %w", text, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return utils.Point{}, fmt.Errorf("malformed vertex %q: %w", text, err)
	}
	return utils.Point{X: x, Y: y}, nil
}
