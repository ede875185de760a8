package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/fleetgate/internal/util"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultConfigName = "config"
	defaultConfigDir  = ".fleetgate"

	// EnvPrefix is the prefix for environment variable overrides (FLEETGATE_SERVER_ADDR, ...)
	EnvPrefix = "FLEETGATE"
)

// Manager loads the gateway configuration through viper
type Manager struct {
	configPath string
	config     *GatewayConfig
	viper      *viper.Viper
}

// NewManager creates a new configuration manager. An empty configPath searches
// ~/.fleetgate/config.yaml and ./config.yaml.
func NewManager(configPath string) *Manager {
	return NewManagerWithViper(configPath, viper.New())
}

// NewManagerWithViper uses v so that flags bound by the CLI take part in resolution
func NewManagerWithViper(configPath string, v *viper.Viper) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      v,
		config:     &GatewayConfig{},
	}
}

// Load reads, defaults and validates the configuration. A missing config file
// is not an error; the defaults plus any environment overrides are returned.
func (m *Manager) Load() (*GatewayConfig, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		}
		m.viper.AddConfigPath(".")
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	m.bindEnv()

	m.config = &GatewayConfig{}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := m.viper.Unmarshal(m.config, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	if err := Validate(m.config); err != nil {
		return nil, err
	}
	return m.config, nil
}

// bindEnv registers the nested keys AutomaticEnv cannot discover on its own
func (m *Manager) bindEnv() {
	for _, key := range []string{
		"kubeconfig",
		"discoverContexts",
		"server.addr",
		"server.shutdownTimeout",
		"pool.maxPerEnvironment",
		"pool.acquireTimeout",
		"pool.requestTimeout",
		"gateway.requestTimeout",
		"batch.concurrency",
		"manifest.requireResourceVersion",
	} {
		_ = m.viper.BindEnv(key)
	}
}

// ConfigFileUsed returns the config file that was read, if any
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *GatewayConfig {
	return m.config
}

// applyDefaults sets default values for configuration
func (m *Manager) applyDefaults() {
	ApplyDefaults(m.config)
}

// ApplyDefaults fills zero values of cfg with the gateway defaults
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg == nil {
		return
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 4 << 20
	}

	if cfg.Pool.MaxPerEnvironment == 0 {
		cfg.Pool.MaxPerEnvironment = 10
	}
	if cfg.Pool.AcquireTimeout == 0 {
		cfg.Pool.AcquireTimeout = 5 * time.Second
	}
	if cfg.Pool.RequestTimeout == 0 {
		cfg.Pool.RequestTimeout = 30 * time.Second
	}

	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = 30 * time.Second
	}
	if cfg.Gateway.ProtectedOwnerKinds == nil {
		cfg.Gateway.ProtectedOwnerKinds = []string{"StatefulSet"}
	}

	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 5
	}

	if cfg.Environments == nil {
		cfg.Environments = make(map[string]EnvironmentConfig)
	}
}

// Validate checks cfg for values the gateway cannot run with
func Validate(cfg *GatewayConfig) error {
	if cfg.Pool.MaxPerEnvironment < 0 {
		return fmt.Errorf("%w: pool.maxPerEnvironment must be positive, got %d", util.ErrInvalidConfig, cfg.Pool.MaxPerEnvironment)
	}
	if cfg.Batch.Concurrency < 0 {
		return fmt.Errorf("%w: batch.concurrency must be positive, got %d", util.ErrInvalidConfig, cfg.Batch.Concurrency)
	}

	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		env := cfg.Environments[name]
		if env.Context == "" && env.Server == "" {
			return fmt.Errorf("%w: environment %q needs a context or a server", util.ErrInvalidConfig, name)
		}
		if env.Server != "" {
			u, err := url.Parse(env.Server)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("%w: environment %q has an invalid server URL %q", util.ErrInvalidConfig, name, env.Server)
			}
		}
	}
	return nil
}

// EnvironmentNames returns the configured environment ids, sorted
func (c *GatewayConfig) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvironmentsByLabel returns environment ids whose labels contain all of required
func (c *GatewayConfig) EnvironmentsByLabel(required map[string]string) []string {
	matching := make([]string, 0)
	for _, name := range c.EnvironmentNames() {
		if matchesLabels(c.Environments[name].Labels, required) {
			matching = append(matching, name)
		}
	}
	return matching
}

// matchesLabels checks if labels contain every required key/value pair
func matchesLabels(labels, required map[string]string) bool {
	for key, value := range required {
		if v, ok := labels[key]; !ok || v != value {
			return false
		}
	}
	return true
}
