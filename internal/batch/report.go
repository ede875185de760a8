package batch

import (
	"fmt"

	"github.com/aryankumar/fleetgate/internal/executor"
	"github.com/aryankumar/fleetgate/internal/util"
)

// Outcome summarizes a batch
type Outcome string

const (
	OutcomeAllSucceeded Outcome = "all_succeeded"
	OutcomePartial      Outcome = "partial"
	OutcomeAllFailed    Outcome = "all_failed"
)

// ItemResult is the outcome of one batch item. Index is the item's position
// in the request.
type ItemResult struct {
	Index     int    `json:"index"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Changed   bool   `json:"changed"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report is the summarized and itemized result of one batch
type Report struct {
	Operation string       `json:"operation"`
	Env       string       `json:"env"`
	Outcome   Outcome      `json:"outcome"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// Success reports whether every item succeeded
func (r *Report) Success() bool {
	return r.Outcome == OutcomeAllSucceeded
}

// Message is a one-line human summary of the report
func (r *Report) Message() string {
	return fmt.Sprintf("%s in environment %q: %d succeeded, %d failed of %d", r.Operation, r.Env, r.Succeeded, r.Failed, r.Total)
}

// FailedItems returns the failed item results in input order
func (r *Report) FailedItems() []ItemResult {
	out := make([]ItemResult, 0, r.Failed)
	for _, it := range r.Items {
		if !it.Success {
			out = append(out, it)
		}
	}
	return out
}

// OutcomeOf returns the outcome for failed failures out of total items.
// total is never zero for a dispatched batch or stream.
func OutcomeOf(total, failed int) Outcome {
	switch failed {
	case 0:
		return OutcomeAllSucceeded
	case total:
		return OutcomeAllFailed
	default:
		return OutcomePartial
	}
}

// change is the value every item task returns
type change struct {
	changed bool
	reason  string
}

type itemKey struct {
	namespace string
	name      string
}

func buildReport(operation, envID string, keys []itemKey, results []executor.Result[change]) *Report {
	r := &Report{
		Operation: operation,
		Env:       envID,
		Total:     len(results),
		Items:     make([]ItemResult, len(results)),
	}

	for i, res := range results {
		item := ItemResult{
			Index:     i,
			Namespace: keys[i].namespace,
			Name:      keys[i].name,
		}

		switch {
		case res.Success():
			item.Success = true
			item.Changed = res.Value.changed
			item.Reason = res.Value.reason
			r.Succeeded++
		case !res.Executed:
			item.Error = util.CodeCancelled
			item.Reason = res.Err.Error()
			r.Failed++
		default:
			err := util.Classify(res.Err)
			item.Error = util.Code(err)
			item.Reason = err.Error()
			r.Failed++
		}
		r.Items[i] = item
	}

	r.Outcome = OutcomeOf(r.Total, r.Failed)
	return r
}
