package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/manifest"
	"github.com/aryankumar/fleetgate/internal/util"
)

// Envelope is the body of every API response. A failed response always
// carries Message and an error code in Error.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Total   *int        `json:"total,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// writeList adds the item count to the envelope
func writeList[T any](w http.ResponseWriter, items []T) {
	total := len(items)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: items, Total: &total})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// writeError maps err onto its status and code. Internal errors are logged;
// the rest are expected outcomes of client requests.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := util.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, Envelope{
		Success: false,
		Message: err.Error(),
		Error:   util.Code(err),
	})
}

// writeReport answers a batch request. Item failures never change the status
// code; success and error summarize the report.
func writeReport(w http.ResponseWriter, report *batch.Report) {
	body := Envelope{
		Success: report.Success(),
		Data:    report,
		Message: report.Message(),
	}
	if !body.Success {
		body.Error = firstFailureCode(report)
	}
	total := report.Total
	body.Total = &total
	writeJSON(w, http.StatusOK, body)
}

// writeManifestReport writes a manifest stream report. A single rejected
// document keeps the status of its error; anything else is itemized under 200.
func writeManifestReport(w http.ResponseWriter, report *manifest.StreamReport) {
	body := Envelope{
		Success: report.Success(),
		Data:    report,
		Message: report.Message(),
	}
	status := http.StatusOK
	if err := report.FirstError(); err != nil {
		body.Error = util.Code(err)
		if report.Total == 1 {
			status = util.HTTPStatus(err)
		}
	}
	total := report.Total
	body.Total = &total
	writeJSON(w, status, body)
}

// firstFailureCode returns the error code of the first failed item
func firstFailureCode(report *batch.Report) string {
	for _, item := range report.FailedItems() {
		if item.Error != "" {
			return item.Error
		}
	}
	return util.CodeInternal
}

// decodeBody decodes a JSON request body of at most limit bytes into v
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return util.InvalidRequest("body", nil, fmt.Sprintf("request body exceeds %d bytes", limit))
		case errors.Is(err, io.EOF):
			return util.InvalidRequest("body", nil, "request body is empty")
		default:
			return util.InvalidRequest("body", nil, fmt.Sprintf("malformed JSON: %v", err))
		}
	}
	return nil
}
