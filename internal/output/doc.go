// Package output renders gateway results for the fleetgate CLI.
//
// Three formats are supported: kubectl-style tables, JSON and YAML. Tables
// print resource projections in their kind's fixed column order, batch
// reports with one row per item and a summary line, and environment health.
// JSON and YAML emit the same values with every field.
//
// Colors are enabled only when writing to a terminal and can be disabled
// with WithNoColor:
//
//	formatter := output.NewFormatter(output.FormatTable, output.WithNoColor(true))
//	formatter.FormatResources(os.Stdout, gateway.Columns(gateway.KindPod), pods)
package output
