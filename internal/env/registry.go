package env

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aryankumar/fleetgate/internal/config"
	"github.com/aryankumar/fleetgate/internal/util"
)

// Registry resolves environment ids. It is safe for concurrent use without
// locking because it is never modified after construction.
type Registry struct {
	envs map[string]*Environment
	ids  []string
}

// NewRegistry builds a registry from envs. Empty or duplicate ids fail with
// util.ErrInvalidConfig.
func NewRegistry(envs []Environment) (*Registry, error) {
	r := &Registry{
		envs: make(map[string]*Environment, len(envs)),
		ids:  make([]string, 0, len(envs)),
	}

	errs := &util.MultiError{}
	for i := range envs {
		e := envs[i]
		if e.ID == "" {
			errs.Add(fmt.Errorf("%w: environment at position %d has an empty id", util.ErrInvalidConfig, i))
			continue
		}
		if _, exists := r.envs[e.ID]; exists {
			errs.Add(fmt.Errorf("%w: duplicate environment id %q", util.ErrInvalidConfig, e.ID))
			continue
		}
		r.envs[e.ID] = &e
		r.ids = append(r.ids, e.ID)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.Strings(r.ids)
	return r, nil
}

// Resolve returns the environment registered under id.
// It fails with util.ErrUnknownEnvironment when there is none.
func (r *Registry) Resolve(id string) (*Environment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: environment id is required", util.ErrUnknownEnvironment)
	}
	e, ok := r.envs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownEnvironment, id)
	}
	return e, nil
}

// IDs returns all environment ids, sorted
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// All returns every environment in id order
func (r *Registry) All() []*Environment {
	out := make([]*Environment, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.envs[id])
	}
	return out
}

// Len returns the number of registered environments
func (r *Registry) Len() int {
	return len(r.ids)
}

// FromConfig builds the registry from explicit environment entries and, when
// cfg.DiscoverContexts is set, from every kubeconfig context the loader sees.
// Explicit entries win over discovered contexts that map to the same id.
func FromConfig(cfg *config.GatewayConfig, loader *config.KubeconfigLoader, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	envs := make([]Environment, 0, len(cfg.Environments))
	claimed := make(map[string]bool, len(cfg.Environments))

	for _, id := range cfg.EnvironmentNames() {
		ec := cfg.Environments[id]
		kubeconfig := ec.Kubeconfig
		if kubeconfig == "" && ec.Context != "" {
			kubeconfig = cfg.Kubeconfig
		}
		e := Environment{
			ID:                    id,
			Context:               ec.Context,
			Kubeconfig:            kubeconfig,
			Server:                ec.Server,
			Token:                 ec.Token,
			TokenFile:             ec.TokenFile,
			CAFile:                ec.CAFile,
			InsecureSkipTLSVerify: ec.InsecureSkipTLSVerify,
			TokenExpiresAt:        ec.TokenExpiresAt,
			Labels:                ec.Labels,
		}.WithAllowedNamespaces(ec.AllowedNamespaces...)
		envs = append(envs, e)
		claimed[id] = true
	}

	if cfg.DiscoverContexts && loader != nil {
		contexts, err := loader.Contexts()
		if err != nil {
			return nil, fmt.Errorf("failed to discover kubeconfig contexts: %w", err)
		}
		for _, contextName := range contexts {
			id := util.EnvironmentID(contextName)
			if id == "" || claimed[id] {
				logger.Debug("skipping discovered context", "context", contextName, "id", id)
				continue
			}
			claimed[id] = true
			envs = append(envs, Environment{ID: id, Context: contextName, Kubeconfig: cfg.Kubeconfig})
		}
		logger.Debug("discovered kubeconfig contexts", "count", len(contexts))
	}

	if len(envs) == 0 {
		return nil, fmt.Errorf("%w: no environments configured", util.ErrInvalidConfig)
	}

	registry, err := NewRegistry(envs)
	if err != nil {
		return nil, err
	}
	logger.Info("environment registry loaded", "environments", registry.Len())
	return registry, nil
}
