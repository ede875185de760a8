package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// KubeconfigLoader resolves and reads kubeconfig files.
// Sources are checked in order:
// 1. Explicit path (--kubeconfig flag or the kubeconfig config key)
// 2. KUBECONFIG environment variable (multiple paths separated by the OS list separator)
// 3. Default ~/.kube/config
type KubeconfigLoader struct {
	paths    []string
	explicit bool
	loaded   *api.Config
}

// NewKubeconfigLoader creates a new kubeconfig loader
func NewKubeconfigLoader(explicitPath string) *KubeconfigLoader {
	loader := &KubeconfigLoader{}

	if explicitPath != "" {
		if expanded, err := expandPath(explicitPath); err == nil {
			loader.paths = append(loader.paths, expanded)
			loader.explicit = true
		}
		return loader
	}

	if env := os.Getenv("KUBECONFIG"); env != "" {
		for _, path := range filepath.SplitList(env) {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			if expanded, err := expandPath(path); err == nil {
				loader.paths = append(loader.paths, expanded)
			}
		}
	}

	if len(loader.paths) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			loader.paths = append(loader.paths, filepath.Join(home, ".kube", "config"))
		}
	}

	return loader
}

// Load returns the merged kubeconfig from all sources
func (l *KubeconfigLoader) Load() (*api.Config, error) {
	if l.loaded != nil {
		return l.loaded, nil
	}
	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available")
	}

	cfg, err := l.rules().Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("kubeconfig is empty")
	}

	l.loaded = cfg
	return cfg, nil
}

// Contexts returns all context names, sorted
func (l *KubeconfigLoader) Contexts() ([]string, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		contexts = append(contexts, name)
	}
	sort.Strings(contexts)
	return contexts, nil
}

// ContextInfo returns information about a specific context
func (l *KubeconfigLoader) ContextInfo(contextName string) (*ContextInfo, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	kctx, ok := cfg.Contexts[contextName]
	if !ok || kctx == nil {
		return nil, fmt.Errorf("context %q not found in kubeconfig", contextName)
	}
	cluster := cfg.Clusters[kctx.Cluster]
	if cluster == nil {
		return nil, fmt.Errorf("cluster %q not found for context %q", kctx.Cluster, contextName)
	}

	info := &ContextInfo{
		Context:   contextName,
		Cluster:   kctx.Cluster,
		Server:    cluster.Server,
		Namespace: kctx.Namespace,
		User:      kctx.AuthInfo,
		Current:   contextName == cfg.CurrentContext,
	}
	if info.Namespace == "" {
		info.Namespace = "default"
	}
	return info, nil
}

// BuildClientConfig creates a rest.Config for a specific context.
// An empty contextName uses the kubeconfig's current context.
func (l *KubeconfigLoader) BuildClientConfig(contextName string) (*rest.Config, error) {
	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available")
	}

	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(l.rules(), overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create client config for context %q: %w", contextName, err)
	}
	return restConfig, nil
}

// rules builds loading rules; an explicit path must exist, precedence paths may be missing
func (l *KubeconfigLoader) rules() *clientcmd.ClientConfigLoadingRules {
	if l.explicit {
		return &clientcmd.ClientConfigLoadingRules{ExplicitPath: l.paths[0]}
	}
	return &clientcmd.ClientConfigLoadingRules{Precedence: l.paths}
}

// Paths returns the kubeconfig paths being used
func (l *KubeconfigLoader) Paths() []string {
	return l.paths
}

// expandPath expands ~ and environment variables
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
