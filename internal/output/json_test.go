package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
)

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(nil).Format(&buf, map[string]interface{}{"name": "test"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "  \"name\": \"test\"") {
		t.Errorf("expected indented JSON, got %q", buf.String())
	}
}

func TestJSONFormatter_FormatResources(t *testing.T) {
	var buf bytes.Buffer
	items := []gateway.Resource{{"name": "web-0", "namespace": "a", "ready": "1/1"}}
	if err := NewJSONFormatter(nil).FormatResources(&buf, []string{"name"}, items); err != nil {
		t.Fatalf("FormatResources() error = %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["ready"] != "1/1" {
		t.Errorf("expected every field to be emitted, got %v", decoded)
	}

	buf.Reset()
	_ = NewJSONFormatter(nil).FormatResources(&buf, nil, nil)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestJSONFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(nil).FormatReport(&buf, testReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	var decoded batch.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Outcome != batch.OutcomePartial || len(decoded.Items) != 2 {
		t.Errorf("unexpected report %+v", decoded)
	}
	if decoded.Items[1].Error != "not_found" {
		t.Errorf("expected item error code, got %q", decoded.Items[1].Error)
	}
}

func TestJSONFormatter_FormatHealth(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(nil).FormatHealth(&buf, []cluster.HealthStatus{{Env: "dev", Healthy: true}}); err != nil {
		t.Fatalf("FormatHealth() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"healthy": true`) {
		t.Errorf("unexpected output %q", buf.String())
	}
}
