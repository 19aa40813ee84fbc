// Package sink provides result sinks for batch transformations.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"path"
	"strconv"
	"strings"

	"github.com/jobrunner/geotrans/internal/adapters/storage"
	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// csvHeader is the header row of a result file.
var csvHeader = []string{"index", "in_x", "in_y", "in_z", "out_x", "out_y", "out_z", "error"}

// CSVSink writes one CSV result file per batch through an object writer.
type CSVSink struct {
	writer output.ObjectWriter
	prefix string
}

// NewCSVSink creates a CSV sink writing below prefix.
func NewCSVSink(writer output.ObjectWriter, prefix string) *CSVSink {
	return &CSVSink{writer: writer, prefix: strings.Trim(prefix, "/")}
}

// ResultKey returns the key of the result file of a batch file.
func (s *CSVSink) ResultKey(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name)) + storage.ResultSuffix
	if s.prefix == "" {
		return base
	}
	return s.prefix + "/" + base
}

// Write implements output.ResultSink.
func (s *CSVSink) Write(ctx context.Context, result *domain.BatchResult) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, result); err != nil {
		return err
	}
	return s.writer.Put(ctx, s.ResultKey(result.Name), &buf)
}

// Close implements output.ResultSink.
func (s *CSVSink) Close() error {
	return nil
}

// EncodeCSV writes the header and one row per point. Missing heights are
// written as empty fields.
func EncodeCSV(buf *bytes.Buffer, result *domain.BatchResult) error {
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range result.Results {
		row := []string{
			strconv.Itoa(r.Index),
			formatFloat(r.Input.X), formatFloat(r.Input.Y), formatHeight(r.Input),
			formatFloat(r.Output.X), formatFloat(r.Output.Y), formatHeight(r.Output),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatHeight(p domain.Point3) string {
	if !p.HasZ() {
		return ""
	}
	return formatFloat(p.Z)
}
