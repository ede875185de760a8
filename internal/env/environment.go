// Package env holds the environment registry: the immutable mapping from an
// opaque environment id to the cluster it selects and the policy that applies
// to it. The registry is built once at startup and only read afterwards.
package env

import (
	"sort"
	"time"
)

// Environment is one addressable cluster and its access policy
type Environment struct {
	// ID is the globally unique environment identifier used in requests
	ID string

	// Context is the kubeconfig context backing this environment, if any
	Context string

	// Kubeconfig is the kubeconfig path for Context; empty uses default resolution
	Kubeconfig string

	// Server is the API server URL when the environment is not kubeconfig based
	Server string

	// Credentials for Server based environments
	Token                 string
	TokenFile             string
	CAFile                string
	InsecureSkipTLSVerify bool

	// TokenExpiresAt, when set, marks the credentials as expired after that instant
	TokenExpiresAt time.Time

	// Labels for organizing environments
	Labels map[string]string

	allowed map[string]struct{}
}

// AllowsNamespace reports whether namespaced access to ns is permitted.
// Environments without an allow list permit every namespace.
func (e *Environment) AllowsNamespace(ns string) bool {
	if len(e.allowed) == 0 {
		return true
	}
	_, ok := e.allowed[ns]
	return ok
}

// Restricted reports whether the environment has a namespace allow list
func (e *Environment) Restricted() bool {
	return len(e.allowed) > 0
}

// AllowedNamespaces returns the allow list, sorted. Nil when unrestricted.
func (e *Environment) AllowedNamespaces() []string {
	if len(e.allowed) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.allowed))
	for ns := range e.allowed {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// CredentialsExpired reports whether TokenExpiresAt has passed at now
func (e *Environment) CredentialsExpired(now time.Time) bool {
	return !e.TokenExpiresAt.IsZero() && !now.Before(e.TokenExpiresAt)
}

// Endpoint is a display string for where the environment points
func (e *Environment) Endpoint() string {
	if e.Server != "" {
		return e.Server
	}
	return "context:" + e.Context
}

// WithAllowedNamespaces sets the namespace allow list. It is meant for
// construction before the environment is handed to a registry.
func (e Environment) WithAllowedNamespaces(namespaces ...string) Environment {
	e.allowed = make(map[string]struct{}, len(namespaces))
	for _, ns := range namespaces {
		if ns != "" {
			e.allowed[ns] = struct{}{}
		}
	}
	return e
}
