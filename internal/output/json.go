package output

import (
	"encoding/json"
	"io"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatResources outputs the projections as a JSON array
func (f *JSONFormatter) FormatResources(w io.Writer, columns []string, items []gateway.Resource) error {
	if items == nil {
		items = []gateway.Resource{}
	}
	return f.Format(w, items)
}

// FormatReport outputs the report as JSON
func (f *JSONFormatter) FormatReport(w io.Writer, report *batch.Report) error {
	return f.Format(w, report)
}

// FormatHealth outputs the statuses as a JSON array
func (f *JSONFormatter) FormatHealth(w io.Writer, statuses []cluster.HealthStatus) error {
	if statuses == nil {
		statuses = []cluster.HealthStatus{}
	}
	return f.Format(w, statuses)
}
