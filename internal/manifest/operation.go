// Package manifest creates, applies or replaces raw YAML/JSON documents.
// A stream of documents runs one Operation per document.
//
// An Operation moves through an explicit state machine:
//
//	Pending -> Parsed -> Validated -> Dispatched -> Applied
//	       \         \            \             \-> Rejected
//	        `---------`------------`--------------> Rejected
//
// Parse and Validate never touch the network, so a malformed or invalid
// document is rejected without side effects. Each stage is a separate Engine
// method and can be driven on its own.
package manifest

import (
	"fmt"
	"strings"
	"time"

	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/util"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// State is a stage of an Operation
type State string

const (
	StatePending    State = "Pending"
	StateParsed     State = "Parsed"
	StateValidated  State = "Validated"
	StateDispatched State = "Dispatched"
	StateApplied    State = "Applied"
	StateRejected   State = "Rejected"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateApplied || s == StateRejected
}

// Mode selects create-only, merge or full-overwrite semantics
type Mode string

const (
	ModeCreate  Mode = "create"
	ModeApply   Mode = "apply"
	ModeReplace Mode = "replace"
)

const modeUsage = "method must be create, apply or replace"

// ParseMode parses "create", "apply" or "replace", case-insensitively
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCreate, ModeApply, ModeReplace:
		return m, nil
	}
	return "", util.InvalidRequest("method", s, modeUsage)
}

// Action is what the cluster did with an applied document
type Action string

const (
	ActionCreated    Action = "created"
	ActionConfigured Action = "configured"
	ActionReplaced   Action = "replaced"
)

// Transition is one recorded state change
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Operation is one create, apply or replace of a single document. It exists
// for the duration of the request only.
type Operation struct {
	Env  string
	Mode Mode
	Raw  []byte

	State   State
	History []Transition

	// Set by Parse
	Object *unstructured.Unstructured

	// Set by Validate
	Kind      gateway.Kind
	Namespace string
	Name      string

	// Set on reaching a terminal state
	Err    error
	Result *Result
}

// Result is the outcome reported to callers
type Result struct {
	State           State        `json:"state"`
	Action          Action       `json:"action,omitempty"`
	Kind            gateway.Kind `json:"kind,omitempty"`
	Namespace       string       `json:"namespace,omitempty"`
	Name            string       `json:"name,omitempty"`
	ResourceVersion string       `json:"resourceVersion,omitempty"`
	Message         string       `json:"message"`
}

// NewOperation creates a Pending operation
func NewOperation(envID string, mode Mode, raw []byte) *Operation {
	return &Operation{
		Env:   envID,
		Mode:  mode,
		Raw:   raw,
		State: StatePending,
	}
}

// Describe returns kind namespace/name for log and result messages
func (op *Operation) Describe() string {
	target := op.Name
	if op.Namespace != "" {
		target = op.Namespace + "/" + op.Name
	}
	return fmt.Sprintf("%s %s", op.Kind, target)
}

func (op *Operation) transition(to State, at time.Time, reason string) {
	op.History = append(op.History, Transition{From: op.State, To: to, At: at, Reason: reason})
	op.State = to
}

// expect fails when op is not in state want
func (op *Operation) expect(want State) error {
	if op.State != want {
		return fmt.Errorf("manifest operation is %s, expected %s", op.State, want)
	}
	return nil
}
