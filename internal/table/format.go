package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Write renders t in the named format: csv, json or text.
func (t *Table) Write(w io.Writer, format string) error {
	switch format {
	case "csv":
		return t.WriteCSV(w)
	case "json":
		return t.WriteJSON(w)
	case "text", "":
		return t.WriteText(w)
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
}

// WriteCSV writes t with a leading unnamed index column. Missing cells are
// left empty.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{""}, t.columns...)); err != nil {
		return err
	}
	record := make([]string, len(t.columns)+1)
	for i := range t.rows {
		record[0] = strconv.Itoa(i)
		for j, c := range t.columns {
			record[j+1] = FormatValue(t.data[c][i])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes t to path, creating the parent directory.
func (t *Table) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create table directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the user
	if err != nil {
		return fmt.Errorf("create table file: %w", err)
	}
	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write table file %s: %w", path, err)
	}
	return f.Close()
}

// WriteJSON writes one object per row; Missing cells become null.
func (t *Table) WriteJSON(w io.Writer) error {
	records := make([]map[string]any, t.rows)
	for i := range t.rows {
		rec := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			v := t.data[c][i]
			if IsMissing(v) {
				v = nil
			}
			rec[c] = v
		}
		records[i] = rec
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}{Columns: t.Columns(), Rows: records})
}

// WriteText writes an aligned plain-text listing.
func (t *Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(t.columns, "\t")); err != nil {
		return err
	}
	cells := make([]string, len(t.columns))
	for i := range t.rows {
		for j, c := range t.columns {
			cells[j] = FormatValue(t.data[c][i])
			if cells[j] == "" {
				cells[j] = "-"
			}
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// FormatValue renders a cell the way pandas writes it: floats in shortest
// round-trip form with a trailing ".0" for whole numbers, NaN as "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if f != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
