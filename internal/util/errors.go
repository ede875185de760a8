package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Gateway error taxonomy. Every error returned across a package boundary
// wraps exactly one of these so callers can classify with errors.Is.
var (
	// ErrUnknownEnvironment indicates the environment id is not registered
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrForbidden indicates a namespace or cluster policy violation
	ErrForbidden = errors.New("forbidden")

	// ErrClusterUnreachable indicates a transport failure or timeout talking to a cluster
	ErrClusterUnreachable = errors.New("cluster unreachable")

	// ErrAuthExpired indicates the environment credentials are no longer valid
	ErrAuthExpired = errors.New("credentials expired")

	// ErrNotFound indicates the addressed resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an optimistic-concurrency or ownership conflict
	ErrConflict = errors.New("conflict")

	// ErrInvalidManifest indicates a manifest failed to parse or validate
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrInvalidRequest indicates malformed parameters or batch input
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidConfig indicates a configuration error at startup
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Codes used in the "error" field of API responses.
const (
	CodeUnknownEnvironment = "unknown_environment"
	CodeForbidden          = "forbidden"
	CodeClusterUnreachable = "cluster_unreachable"
	CodeAuthExpired        = "auth_expired"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeInvalidManifest    = "invalid_manifest"
	CodeInvalidRequest     = "invalid_request"
	CodeCancelled          = "cancelled"
	CodeInternal           = "internal"
)

// EnvironmentError wraps an error with the environment it happened in
type EnvironmentError struct {
	Env string
	Err error
}

// Error implements the error interface
func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment %q: %v", e.Env, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// WrapEnvironmentError wraps an error with environment context
func WrapEnvironmentError(env string, err error) error {
	if err == nil {
		return nil
	}
	return &EnvironmentError{Env: env, Err: err}
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// ValidationError describes one failed check on a request field or manifest path.
// Kind is the taxonomy error it belongs to (ErrInvalidManifest, ErrInvalidRequest).
type ValidationError struct {
	Kind    error
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("%v: field %q (value: %v): %s", v.Kind, v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("%v: field %q: %s", v.Kind, v.Field, v.Message)
}

// Unwrap returns the taxonomy error
func (v *ValidationError) Unwrap() error {
	return v.Kind
}

// InvalidRequest builds a ValidationError classified as ErrInvalidRequest
func InvalidRequest(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidRequest, Field: field, Value: value, Message: message}
}

// InvalidManifest builds a ValidationError classified as ErrInvalidManifest
func InvalidManifest(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidManifest, Field: field, Value: value, Message: message}
}

// Classify maps an error from client-go or the transport onto the gateway
// taxonomy. The upstream message is preserved in the returned error text.
// Errors that already belong to the taxonomy are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isTaxonomy(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	case apierrors.IsForbidden(err):
		return fmt.Errorf("%w: %s", ErrForbidden, err.Error())
	case apierrors.IsUnauthorized(err):
		return fmt.Errorf("%w: %s", ErrAuthExpired, err.Error())
	case apierrors.IsConflict(err), apierrors.IsAlreadyExists(err):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err),
		apierrors.IsServiceUnavailable(err), apierrors.IsTooManyRequests(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrClusterUnreachable, err.Error())
	}

	// *url.Error implements net.Error, so failed round trips land here too
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s", ErrClusterUnreachable, err.Error())
	}
	// Anything else is local and reported as internal
	return err
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		ErrUnknownEnvironment, ErrForbidden, ErrClusterUnreachable, ErrAuthExpired,
		ErrNotFound, ErrConflict, ErrInvalidManifest, ErrInvalidRequest, ErrInvalidConfig,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Code returns the API error code for err
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownEnvironment):
		return CodeUnknownEnvironment
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrClusterUnreachable):
		return CodeClusterUnreachable
	case errors.Is(err, ErrAuthExpired):
		return CodeAuthExpired
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrInvalidManifest):
		return CodeInvalidManifest
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// HTTPStatus returns the HTTP status code an API response for err should carry
func HTTPStatus(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case CodeUnknownEnvironment, CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeClusterUnreachable:
		return http.StatusBadGateway
	case CodeAuthExpired:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidManifest:
		return http.StatusUnprocessableEntity
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnreachable reports whether err is a cluster transport error
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrClusterUnreachable)
}

// FriendlyError converts taxonomy errors to operator-facing hints for the CLI
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch Code(err) {
	case CodeUnknownEnvironment:
		return "Unknown environment. Run 'fleetgate envs list' to see configured environments."
	case CodeClusterUnreachable:
		return "Cluster unreachable. Check the environment's server address and network connectivity."
	case CodeAuthExpired:
		return "Credentials expired. Refresh the environment's token or kubeconfig."
	case CodeForbidden:
		return "Forbidden. The namespace is outside the environment's allowed namespaces or RBAC denies the call."
	default:
		return err.Error()
	}
}
