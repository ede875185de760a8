package output

import (
	"fmt"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name         string
		format       Format
		opts         []Option
		expectedType string
	}{
		{"table formatter default", FormatTable, nil, "*output.TableFormatter"},
		{"json formatter", FormatJSON, nil, "*output.JSONFormatter"},
		{"yaml formatter", FormatYAML, nil, "*output.YAMLFormatter"},
		{"empty format defaults to table", "", nil, "*output.TableFormatter"},
		{"unknown format defaults to table", "unknown", nil, "*output.TableFormatter"},
		{"table with multiple options", FormatTable, []Option{WithNoColor(true), WithNoHeaders(true), WithWide(true)}, "*output.TableFormatter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewFormatter(tt.format, tt.opts...)
			if formatter == nil {
				t.Fatal("NewFormatter returned nil")
			}
			if got := fmt.Sprintf("%T", formatter); got != tt.expectedType {
				t.Errorf("NewFormatter() type = %s, want %s", got, tt.expectedType)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	f := NewFormatter(FormatTable, WithNoColor(true), WithNoHeaders(true), WithWide(true)).(*TableFormatter)
	if !f.options.NoColor || !f.options.NoHeaders || !f.options.Wide {
		t.Errorf("options not applied: %+v", f.options)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, "<none>"},
		{"empty string", "", "<none>"},
		{"string", "Running", "Running"},
		{"empty slice", []string{}, "<none>"},
		{"slice", []string{"a.example.com", "b.example.com"}, "a.example.com,b.example.com"},
		{"int", int32(3), "3"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cell(tt.value); got != tt.want {
				t.Errorf("cell(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
