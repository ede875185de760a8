package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/util"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestSplitDocuments(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantIndexes []int
	}{
		{"single", settingsYAML, []int{0}},
		{"two", settingsYAML + "---\n" + settingsYAML, []int{0, 1}},
		{"leading separator", "---\n" + settingsYAML, []int{0}},
		{"comment only document", settingsYAML + "---\n# nothing here\n---\n" + settingsYAML, []int{0, 2}},
		{"blank", "\n\n# just a comment\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := SplitDocuments(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(docs) != len(tt.wantIndexes) {
				t.Fatalf("expected %d documents, got %d", len(tt.wantIndexes), len(docs))
			}
			for i, doc := range docs {
				if doc.Index != tt.wantIndexes[i] {
					t.Errorf("document %d: expected index %d, got %d", i, tt.wantIndexes[i], doc.Index)
				}
				if !strings.Contains(string(doc.Raw), "kind: ConfigMap") {
					t.Errorf("document %d: unexpected content %q", i, doc.Raw)
				}
			}
		})
	}
}

func TestRunStream_PartialFailure(t *testing.T) {
	e, _, dyn := newTestEngine(t, Options{})
	ctx := context.Background()

	broken := "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  namespace: a\n"
	other := strings.Replace(settingsYAML, "name: settings", "name: other", 1)
	stream := settingsYAML + "---\n" + broken + "---\n" + other

	report, err := e.RunStream(ctx, "dev", ModeApply, []byte(stream))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if report.Outcome != batch.OutcomePartial || report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected summary %+v", report)
	}
	if report.Success() {
		t.Error("a partial stream is not a success")
	}
	if got := report.Message(); got != "1 of 3 documents rejected" {
		t.Errorf("unexpected message %q", got)
	}

	bad := report.Results[1]
	if bad.Success || bad.Index != 1 || bad.Error != util.CodeInvalidManifest || bad.State != StateRejected {
		t.Errorf("unexpected result for the broken document: %+v", bad)
	}
	if !errors.Is(report.FirstError(), util.ErrInvalidManifest) {
		t.Errorf("expected first error to be invalid manifest, got %v", report.FirstError())
	}

	for _, name := range []string{"settings", "other"} {
		if _, err := dyn.Resource(configMapsGVR).Namespace("a").Get(ctx, name, metav1.GetOptions{}); err != nil {
			t.Errorf("expected %s to be applied after a rejected document: %v", name, err)
		}
	}
}

func TestRunStream_AllSucceeded(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})

	report, err := e.RunStream(context.Background(), "dev", ModeCreate, []byte(settingsYAML))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if !report.Success() || report.Outcome != batch.OutcomeAllSucceeded || report.FirstError() != nil {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Message() != report.Results[0].Message {
		t.Errorf("single document message should be the document's, got %q", report.Message())
	}
}

func TestRunStream_Errors(t *testing.T) {
	e, _, dyn := newTestEngine(t, Options{})

	tests := []struct {
		name    string
		envID   string
		raw     string
		wantErr error
	}{
		{"empty", "dev", "---\n# nothing\n", util.ErrInvalidManifest},
		{"unknown environment", "nope", settingsYAML, util.ErrUnknownEnvironment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := e.RunStream(context.Background(), tt.envID, ModeApply, []byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if report != nil {
				t.Errorf("expected no report, got %+v", report)
			}
		})
	}
	if len(dyn.Actions()) != 0 {
		t.Errorf("expected no cluster calls, saw %v", dyn.Actions())
	}
}

func TestRunStream_CancelledSkipsRemaining(t *testing.T) {
	e, _, dyn := newTestEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.RunStream(ctx, "dev", ModeApply, []byte(settingsYAML+"---\n"+settingsYAML))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if report.Outcome != batch.OutcomeAllFailed {
		t.Errorf("expected all failed, got %s", report.Outcome)
	}
	for _, r := range report.Results {
		if r.Error != util.CodeCancelled || !strings.HasPrefix(r.Message, "not executed") {
			t.Errorf("unexpected result %+v", r)
		}
	}
	if len(dyn.Actions()) != 0 {
		t.Errorf("expected no cluster calls, saw %v", dyn.Actions())
	}
}
