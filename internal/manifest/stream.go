package manifest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/util"
	"k8s.io/apimachinery/pkg/util/yaml"
)

// Document is one document of a manifest stream. Index is its position in
// the stream, counting skipped blank documents.
type Document struct {
	Index int
	Raw   []byte
}

// SplitDocuments splits a multi-document YAML stream. Documents holding only
// comments or whitespace are skipped.
func SplitDocuments(r io.Reader) ([]Document, error) {
	reader := yaml.NewYAMLReader(bufio.NewReader(r))

	var docs []Document
	for index := 0; ; index++ {
		raw, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(raw) {
			continue
		}
		docs = append(docs, Document{Index: index, Raw: raw})
	}
	return docs, nil
}

func isBlank(raw []byte) bool {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' || string(line) == "---" {
			continue
		}
		return false
	}
	return true
}

// DocumentResult is the outcome of one document of a stream
type DocumentResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result
}

// StreamReport is the summarized and itemized outcome of a manifest stream
type StreamReport struct {
	Mode      Mode             `json:"mode"`
	Env       string           `json:"env"`
	Outcome   batch.Outcome    `json:"outcome"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []DocumentResult `json:"results"`

	errs []error
}

// Success reports whether every document was applied
func (r *StreamReport) Success() bool {
	return r.Failed == 0
}

// Message summarizes the report
func (r *StreamReport) Message() string {
	switch r.Outcome {
	case batch.OutcomeAllSucceeded:
		if r.Total == 1 {
			return r.Results[0].Message
		}
		return fmt.Sprintf("%d documents applied", r.Total)
	case batch.OutcomeAllFailed:
		if r.Total == 1 {
			return r.Results[0].Message
		}
		return fmt.Sprintf("all %d documents rejected", r.Total)
	default:
		return fmt.Sprintf("%d of %d documents rejected", r.Failed, r.Total)
	}
}

// FirstError returns the error of the first rejected document, or nil
func (r *StreamReport) FirstError() error {
	for _, err := range r.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// RunStream runs every document of raw as its own Operation, in stream
// order. A rejected document doesn't stop the rest. The error is non-nil
// only when the stream itself is unusable: unreadable, empty or aimed at an
// unknown environment.
func (e *Engine) RunStream(ctx context.Context, envID string, mode Mode, raw []byte) (*StreamReport, error) {
	docs, err := SplitDocuments(bytes.NewReader(raw))
	if err != nil {
		return nil, util.InvalidManifest("document", nil, fmt.Sprintf("malformed stream: %v", err))
	}
	if len(docs) == 0 {
		return nil, util.InvalidManifest("document", nil, "manifest is empty")
	}
	if _, err := e.gw.Resolve(envID); err != nil {
		return nil, err
	}

	report := &StreamReport{
		Mode:    mode,
		Env:     envID,
		Total:   len(docs),
		Results: make([]DocumentResult, 0, len(docs)),
		errs:    make([]error, 0, len(docs)),
	}
	for _, doc := range docs {
		var (
			result *Result
			err    error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			result = &Result{State: StateRejected, Message: fmt.Sprintf("not executed: %v", ctxErr)}
		} else {
			result, err = e.Run(ctx, NewOperation(envID, mode, doc.Raw))
		}

		item := DocumentResult{Index: doc.Index, Success: err == nil, Result: *result}
		if err != nil {
			item.Error = util.Code(err)
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Results = append(report.Results, item)
		report.errs = append(report.errs, err)
	}
	report.Outcome = batch.OutcomeOf(report.Total, report.Failed)

	e.logger.Debug("manifest stream finished", "env", envID, "mode", mode,
		"total", report.Total, "failed", report.Failed, "outcome", report.Outcome)
	return report, nil
}
