package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
)

// DefaultCommand is the engine command that segments the trunk.
const DefaultCommand = "segment trunk"

// Adapter runs one engine command on an image and returns its regions.
type Adapter struct {
	Session    *Session
	Command    string
	Schema     options.Schema
	ObjectType string
}

// NewAdapter returns an adapter for the trunk command.
func NewAdapter(s *Session) *Adapter {
	return &Adapter{
		Session:    s,
		Command:    DefaultCommand,
		Schema:     options.SegmentTrunk,
		ObjectType: "trunk",
	}
}

// Segment shows img in the engine, runs the command with opts, closes the
// display again and collects every region in the result. The display is
// closed on every path. Regions are linked to img and named
// "<object type> of <image name>".
func (a *Adapter) Segment(ctx context.Context, img *raster.Image, opts options.Options) ([]region.Region, error) {
	name := a.Session.Name()
	line := options.Format(a.Schema, opts)

	var res *Result
	err := a.Session.Do(ctx, func(e Engine) (err error) {
		d, err := e.Show(ctx, img)
		if err != nil {
			return wrap(name, "show", err)
		}
		defer func() {
			if cerr := e.Close(d); cerr != nil && err == nil {
				err = wrap(name, "close", cerr)
			}
		}()

		slog.Debug("running engine command", "engine", name, "command", a.Command, "options", line, "image", img.Name)
		res, err = e.Run(ctx, d, a.Command, line)
		return wrap(name, "run", err)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	regions := region.Collect(res.Metadata)
	for i, r := range regions {
		r = r.WithParent(img)
		if r.ObjectType == "" {
			r.ObjectType = a.ObjectType
		}
		r.Name = fmt.Sprintf("%s of %s", r.ObjectType, img.Name)
		regions[i] = r
	}
	return regions, nil
}
