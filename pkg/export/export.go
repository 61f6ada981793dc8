// Package export writes smart search results in machine-readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/codeGROOVE-dev/dossier/pkg/smart"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Write encodes r to w in the given format.
func Write(w io.Writer, f Format, r *smart.Result) error {
	switch f {
	case FormatJSON, "":
		return JSON(w, r)
	case FormatCSV:
		return CSV(w, r)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// JSON writes the full result as indented JSON.
func JSON(w io.Writer, r *smart.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// CSV writes one row per candidate, in ranked order.
func CSV(w io.Writer, r *smart.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"identifier", "type", "confidence", "reason"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range r.Candidates {
		row := []string{
			c.Identifier,
			string(c.Type),
			strconv.FormatFloat(c.Confidence, 'f', 4, 64),
			c.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
