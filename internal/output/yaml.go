package output

import (
	"io"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

// FormatResources outputs the projections as a YAML sequence
func (f *YAMLFormatter) FormatResources(w io.Writer, columns []string, items []gateway.Resource) error {
	out := make([]map[string]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return f.Format(w, out)
}

// FormatReport outputs the report with the same keys as its JSON form
func (f *YAMLFormatter) FormatReport(w io.Writer, report *batch.Report) error {
	if report == nil {
		return f.Format(w, nil)
	}

	items := make([]map[string]interface{}, len(report.Items))
	for i, item := range report.Items {
		m := map[string]interface{}{
			"index":   item.Index,
			"name":    item.Name,
			"success": item.Success,
			"changed": item.Changed,
		}
		if item.Namespace != "" {
			m["namespace"] = item.Namespace
		}
		if item.Reason != "" {
			m["reason"] = item.Reason
		}
		if item.Error != "" {
			m["error"] = item.Error
		}
		items[i] = m
	}

	return f.Format(w, map[string]interface{}{
		"operation": report.Operation,
		"env":       report.Env,
		"outcome":   string(report.Outcome),
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"items":     items,
	})
}

// FormatHealth outputs the statuses as a YAML sequence
func (f *YAMLFormatter) FormatHealth(w io.Writer, statuses []cluster.HealthStatus) error {
	if statuses == nil {
		statuses = []cluster.HealthStatus{}
	}
	return f.Format(w, statuses)
}
