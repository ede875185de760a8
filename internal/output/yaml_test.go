package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"gopkg.in/yaml.v3"
)

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(nil).Format(&buf, map[string]interface{}{"name": "test"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "name: test" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestYAMLFormatter_FormatResources(t *testing.T) {
	var buf bytes.Buffer
	items := []gateway.Resource{{"name": "settings", "data_keys": []string{"a", "b"}}}
	if err := NewYAMLFormatter(nil).FormatResources(&buf, nil, items); err != nil {
		t.Fatalf("FormatResources() error = %v", err)
	}

	var decoded []map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["name"] != "settings" {
		t.Errorf("unexpected output %v", decoded)
	}
}

func TestYAMLFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(nil).FormatReport(&buf, testReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["outcome"] != "partial" {
		t.Errorf("expected outcome partial, got %v", decoded["outcome"])
	}
	items, ok := decoded["items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", decoded["items"])
	}
	second := items[1].(map[string]interface{})
	if second["error"] != "not_found" {
		t.Errorf("expected error code on failed item, got %v", second)
	}
	if _, ok := items[0].(map[string]interface{})["error"]; ok {
		t.Error("successful item must not carry an error")
	}
}

func TestYAMLFormatter_FormatHealth(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(nil).FormatHealth(&buf, []cluster.HealthStatus{{Env: "dev", Healthy: true}}); err != nil {
		t.Fatalf("FormatHealth() error = %v", err)
	}
	if !strings.Contains(buf.String(), "env: dev") || !strings.Contains(buf.String(), "healthy: true") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
