package config

import "time"

// GatewayConfig represents the fleetgate configuration file structure
type GatewayConfig struct {
	// Kubeconfig overrides kubeconfig resolution for context-based environments
	Kubeconfig string `yaml:"kubeconfig,omitempty" json:"kubeconfig,omitempty" mapstructure:"kubeconfig"`

	// DiscoverContexts registers one environment per kubeconfig context
	DiscoverContexts bool `yaml:"discoverContexts,omitempty" json:"discoverContexts,omitempty" mapstructure:"discoverContexts"`

	// Environments maps environment ids to their connection descriptors
	Environments map[string]EnvironmentConfig `yaml:"environments,omitempty" json:"environments,omitempty" mapstructure:"environments"`

	Server   ServerConfig   `yaml:"server,omitempty" json:"server,omitempty" mapstructure:"server"`
	Pool     PoolConfig     `yaml:"pool,omitempty" json:"pool,omitempty" mapstructure:"pool"`
	Gateway  GatewaySection `yaml:"gateway,omitempty" json:"gateway,omitempty" mapstructure:"gateway"`
	Batch    BatchConfig    `yaml:"batch,omitempty" json:"batch,omitempty" mapstructure:"batch"`
	Manifest ManifestConfig `yaml:"manifest,omitempty" json:"manifest,omitempty" mapstructure:"manifest"`
}

// EnvironmentConfig describes how to reach one cluster.
// Either Context (optionally with Kubeconfig) or Server must be set.
type EnvironmentConfig struct {
	// Context is a kubeconfig context name
	Context string `yaml:"context,omitempty" json:"context,omitempty" mapstructure:"context"`

	// Kubeconfig is a kubeconfig path used for this environment only
	Kubeconfig string `yaml:"kubeconfig,omitempty" json:"kubeconfig,omitempty" mapstructure:"kubeconfig"`

	// Server is an API server URL used with Token/TokenFile
	Server string `yaml:"server,omitempty" json:"server,omitempty" mapstructure:"server"`

	Token                 string `yaml:"token,omitempty" json:"-" mapstructure:"token"`
	TokenFile             string `yaml:"tokenFile,omitempty" json:"tokenFile,omitempty" mapstructure:"tokenFile"`
	CAFile                string `yaml:"caFile,omitempty" json:"caFile,omitempty" mapstructure:"caFile"`
	InsecureSkipTLSVerify bool   `yaml:"insecureSkipTLSVerify,omitempty" json:"insecureSkipTLSVerify,omitempty" mapstructure:"insecureSkipTLSVerify"`

	// TokenExpiresAt marks static credentials as unusable after the given time
	TokenExpiresAt time.Time `yaml:"tokenExpiresAt,omitempty" json:"tokenExpiresAt,omitempty" mapstructure:"tokenExpiresAt"`

	// AllowedNamespaces restricts namespaced reads and writes; empty means unrestricted
	AllowedNamespaces []string `yaml:"allowedNamespaces,omitempty" json:"allowedNamespaces,omitempty" mapstructure:"allowedNamespaces"`

	// Labels for organizing environments
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty" mapstructure:"labels"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr,omitempty" json:"addr,omitempty" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty" mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty" mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty" mapstructure:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins,omitempty" json:"corsOrigins,omitempty" mapstructure:"corsOrigins"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes,omitempty" json:"maxBodyBytes,omitempty" mapstructure:"maxBodyBytes"`
}

// PoolConfig configures the cluster client pool
type PoolConfig struct {
	// MaxPerEnvironment caps simultaneously checked-out handles per environment
	MaxPerEnvironment int `yaml:"maxPerEnvironment,omitempty" json:"maxPerEnvironment,omitempty" mapstructure:"maxPerEnvironment"`

	// AcquireTimeout bounds the wait for a free handle
	AcquireTimeout time.Duration `yaml:"acquireTimeout,omitempty" json:"acquireTimeout,omitempty" mapstructure:"acquireTimeout"`

	// RequestTimeout is the connect/read timeout on the REST client
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty" mapstructure:"requestTimeout"`

	QPS   float32 `yaml:"qps,omitempty" json:"qps,omitempty" mapstructure:"qps"`
	Burst int     `yaml:"burst,omitempty" json:"burst,omitempty" mapstructure:"burst"`
}

// GatewaySection configures the resource gateway
type GatewaySection struct {
	// RequestTimeout bounds each gateway operation end to end
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty" mapstructure:"requestTimeout"`

	// ProtectedOwnerKinds are controller kinds whose pods refuse direct deletion without force
	ProtectedOwnerKinds []string `yaml:"protectedOwnerKinds,omitempty" json:"protectedOwnerKinds,omitempty" mapstructure:"protectedOwnerKinds"`
}

// BatchConfig configures the batch mutation coordinator
type BatchConfig struct {
	// Concurrency is the per-batch ceiling of in-flight item calls
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency,omitempty" mapstructure:"concurrency"`

	// ForceDelete lets batch pod deletion bypass the protected owner check
	ForceDelete bool `yaml:"forceDelete,omitempty" json:"forceDelete,omitempty" mapstructure:"forceDelete"`
}

// ManifestConfig configures the manifest apply engine
type ManifestConfig struct {
	// RequireResourceVersion rejects Replace documents that carry no resourceVersion
	RequireResourceVersion bool `yaml:"requireResourceVersion,omitempty" json:"requireResourceVersion,omitempty" mapstructure:"requireResourceVersion"`
}

// ContextInfo represents information about a context from kubeconfig
type ContextInfo struct {
	Context   string `json:"context" yaml:"context"`
	Cluster   string `json:"cluster" yaml:"cluster"`
	Server    string `json:"server" yaml:"server"`
	Namespace string `json:"namespace" yaml:"namespace"`
	User      string `json:"user" yaml:"user"`
	Current   bool   `json:"current" yaml:"current"`
}
