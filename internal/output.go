package internal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/janstarke/dionysos/internal/scanner"
)

// OutputFormat selects how findings are serialized.
type OutputFormat string

const (
	FormatCSV  OutputFormat = "csv"
	FormatTxt  OutputFormat = "txt"
	FormatJSON OutputFormat = "json"
)

// ResultWriter serializes results as they arrive from the workers.
// ShowStrings is an explicit field here rather than process-wide state:
// whether matched content is disclosed is decided at serialization
// time, once, for the whole run.
type ResultWriter struct {
	Format      OutputFormat
	ShowStrings bool

	w       io.Writer
	csvw    *csv.Writer
	jsonEnc *json.Encoder
	started bool
}

func NewResultWriter(format OutputFormat, w io.Writer, showStrings bool) *ResultWriter {
	rw := &ResultWriter{Format: format, ShowStrings: showStrings, w: w}
	switch format {
	case FormatCSV:
		rw.csvw = csv.NewWriter(w)
	case FormatJSON:
		rw.jsonEnc = json.NewEncoder(w)
	}
	return rw
}

type jsonFinding struct {
	Path        string                  `json:"path"`
	Scanner     string                  `json:"scanner"`
	Match       string                  `json:"match"`
	Description string                  `json:"description"`
	Strings     []scanner.MatchedString `json:"strings,omitempty"`
}

// Write serializes one result. Results without findings must never get
// here; the caller drops them.
func (rw *ResultWriter) Write(res *scanner.Result) error {
	switch rw.Format {
	case FormatCSV:
		return rw.writeCSV(res)
	case FormatJSON:
		return rw.writeJSON(res)
	default:
		return rw.writeTxt(res)
	}
}

func (rw *ResultWriter) writeCSV(res *scanner.Result) error {
	if !rw.started {
		rw.started = true
		header := []string{"path", "scanner", "match", "description"}
		if rw.ShowStrings {
			header = append(header, "strings")
		}
		if err := rw.csvw.Write(header); err != nil {
			return err
		}
	}
	for _, f := range res.Findings {
		record := []string{res.Path, f.Scanner, f.Match, f.Description}
		if rw.ShowStrings {
			record = append(record, formatStrings(f.Strings))
		}
		if err := rw.csvw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (rw *ResultWriter) writeJSON(res *scanner.Result) error {
	for _, f := range res.Findings {
		jf := jsonFinding{
			Path:        res.Path,
			Scanner:     f.Scanner,
			Match:       f.Match,
			Description: f.Description,
		}
		if rw.ShowStrings {
			jf.Strings = f.Strings
		}
		if err := rw.jsonEnc.Encode(jf); err != nil {
			return err
		}
	}
	return nil
}

func (rw *ResultWriter) writeTxt(res *scanner.Result) error {
	if _, err := fmt.Fprintf(rw.w, "%s\n", res.Path); err != nil {
		return err
	}
	for _, f := range res.Findings {
		if _, err := fmt.Fprintf(rw.w, "  [%s] %s: %s\n", f.Scanner, f.Match, f.Description); err != nil {
			return err
		}
		if !rw.ShowStrings {
			continue
		}
		for _, s := range f.Strings {
			if _, err := fmt.Fprintf(rw.w, "    %d: %s\n", s.Offset, s.Data); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(rw.w)
	return err
}

// Flush drains buffered output; call once after the run.
func (rw *ResultWriter) Flush() error {
	if rw.csvw != nil {
		rw.csvw.Flush()
		return rw.csvw.Error()
	}
	return nil
}

func formatStrings(strs []scanner.MatchedString) string {
	out := ""
	for i, s := range strs {
		if i > 0 {
			out += ";"
		}
		out += fmt.Sprintf("%d:%s", s.Offset, s.Data)
	}
	return out
}
