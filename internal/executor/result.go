package executor

import (
	"fmt"
	"strings"
	"time"
)

// CountSuccessful returns the number of results that ran without error
func CountSuccessful[T any](results []Result[T]) int {
	count := 0
	for _, r := range results {
		if r.Success() {
			count++
		}
	}
	return count
}

// CountFailed returns the number of results that failed or never ran
func CountFailed[T any](results []Result[T]) int {
	return len(results) - CountSuccessful(results)
}

// CountSkipped returns the number of results whose task never ran
func CountSkipped[T any](results []Result[T]) int {
	count := 0
	for _, r := range results {
		if !r.Executed {
			count++
		}
	}
	return count
}

// FilterFailed returns only the failed results
func FilterFailed[T any](results []Result[T]) []Result[T] {
	filtered := make([]Result[T], 0)
	for _, r := range results {
		if !r.Success() {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Errors extracts the errors of failed results, in task order
func Errors[T any](results []Result[T]) []error {
	errs := make([]error, 0)
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// Summary provides a summary of execution results
type Summary struct {
	Total       int
	Successful  int
	Failed      int
	Skipped     int
	MaxDuration time.Duration
}

// Summarize creates a summary of the results
func Summarize[T any](results []Result[T]) Summary {
	s := Summary{
		Total:      len(results),
		Successful: CountSuccessful(results),
		Failed:     CountFailed(results),
		Skipped:    CountSkipped(results),
	}
	for _, r := range results {
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
	}
	return s
}

// SuccessRate returns the success rate as a percentage (0.0 to 100.0)
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Successful: %d, ", s.Successful))
	sb.WriteString(fmt.Sprintf("Failed: %d", s.Failed))
	if s.Skipped > 0 {
		sb.WriteString(fmt.Sprintf(" (%d skipped)", s.Skipped))
	}
	if s.Total > 0 {
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
	}

	return sb.String()
}
