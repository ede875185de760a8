package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats output as a table (kubectl-style)
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case nil:
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatResources outputs one row per resource in the given column order
func (f *TableFormatter) FormatResources(w io.Writer, columns []string, items []gateway.Resource) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No resources found")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)
	f.setHeader(table, columns, colors)

	for _, item := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(item[col])
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// FormatReport outputs one row per batch item followed by a summary
func (f *TableFormatter) FormatReport(w io.Writer, report *batch.Report) error {
	if report == nil {
		fmt.Fprintln(w, "No results")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"NAMESPACE", "NAME", "STATUS", "REASON"}
	if f.options.Wide {
		headers = append(headers, "CHANGED")
	}
	f.setHeader(table, headers, colors)

	for _, item := range report.Items {
		status := "Succeeded"
		if !item.Success {
			status = "Failed"
		}
		status = colors.StatusColor(!item.Success)(status)

		reason := item.Reason
		if item.Error != "" {
			reason = item.Error + ": " + item.Reason
		}

		row := []string{cell(item.Namespace), item.Name, status, cell(reason)}
		if f.options.Wide {
			row = append(row, fmt.Sprintf("%t", item.Changed))
		}
		table.Append(row)
	}

	table.Render()
	f.printSummary(w, report, colors)
	return nil
}

// FormatHealth outputs one row per environment
func (f *TableFormatter) FormatHealth(w io.Writer, statuses []cluster.HealthStatus) error {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No environments configured")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"ENV", "STATUS", "VERSION", "LATENCY"}
	if f.options.Wide {
		headers = append(headers, "ENDPOINT", "ERROR")
	}
	f.setHeader(table, headers, colors)

	healthy := 0
	for _, st := range statuses {
		status := "Healthy"
		if st.Healthy {
			healthy++
		} else {
			status = "Unhealthy"
		}

		row := []string{
			colors.EnvName(st.Env),
			colors.StatusColor(!st.Healthy)(status),
			cell(st.ServerVersion),
			colors.Duration(st.Latency.Round(1000).String()),
		}
		if f.options.Wide {
			row = append(row, cell(st.Endpoint), cell(st.Error))
		}
		table.Append(row)
	}

	table.Render()

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%d/%d environments healthy\n", healthy, len(statuses))
	return nil
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	for _, k := range sortedKeys(data) {
		table.Append([]string{k, cell(data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table. Columns come from the
// first map, sorted.
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	keys := sortedKeys(data[0])
	if !f.options.NoHeaders {
		headers := make([]string, len(keys))
		for i, k := range keys {
			headers[i] = strings.ToUpper(k)
		}
		table.SetHeader(headers)
	}

	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = cell(item[k])
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

func (f *TableFormatter) setHeader(table *tablewriter.Table, headers []string, colors *ColorScheme) {
	if f.options.NoHeaders {
		return
	}
	if colors.Disabled {
		table.SetHeader(headers)
		return
	}
	colored := make([]string, len(headers))
	for i, h := range headers {
		colored[i] = colors.Header(h)
	}
	table.SetHeader(colored)
}

// createTable creates a new table with kubectl-style configuration
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	// kubectl-style configuration
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t") // Tab-separated like kubectl
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints the batch outcome line
func (f *TableFormatter) printSummary(w io.Writer, report *batch.Report, colors *ColorScheme) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: ")

	successText := colors.Success("%d succeeded", report.Succeeded)

	failedText := fmt.Sprintf("%d failed", report.Failed)
	if report.Failed > 0 {
		failedText = colors.Error("%s", failedText)
	}

	fmt.Fprintf(w, "%s, %s (%s)\n", successText, failedText, colors.Outcome(report.Outcome))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
