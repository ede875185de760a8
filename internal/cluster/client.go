package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryankumar/fleetgate/internal/config"
	"github.com/aryankumar/fleetgate/internal/env"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// FactoryOptions tunes the REST clients created by NewClientFactory
type FactoryOptions struct {
	// RequestTimeout is the connect/read timeout applied to every API call
	RequestTimeout time.Duration
	QPS            float32
	Burst          int
	UserAgent      string
}

// NewClient creates typed and dynamic clients from a REST config.
// No network call is made; reachability is only known after the first request.
func NewClient(envID string, restConfig *rest.Config, logger *slog.Logger) (*Client, error) {
	if restConfig == nil {
		return nil, fmt.Errorf("rest config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	logger.Debug("created cluster client", "env", envID, "server", restConfig.Host)

	return &Client{
		Env:        envID,
		Clientset:  clientset,
		Dynamic:    dynamicClient,
		RestConfig: restConfig,
	}, nil
}

// RESTConfigFor builds the REST config for an environment: from its kubeconfig
// context, or from its server URL and static credentials.
func RESTConfigFor(e *env.Environment) (*rest.Config, error) {
	if e.Server != "" {
		return &rest.Config{
			Host:            e.Server,
			BearerToken:     e.Token,
			BearerTokenFile: e.TokenFile,
			TLSClientConfig: rest.TLSClientConfig{
				CAFile:   e.CAFile,
				Insecure: e.InsecureSkipTLSVerify,
			},
		}, nil
	}
	return config.NewKubeconfigLoader(e.Kubeconfig).BuildClientConfig(e.Context)
}

// NewClientFactory returns the ClientFactory used in production
func NewClientFactory(opts FactoryOptions, logger *slog.Logger) ClientFactory {
	if logger == nil {
		logger = slog.Default()
	}

	return func(_ context.Context, e *env.Environment) (*Client, error) {
		restConfig, err := RESTConfigFor(e)
		if err != nil {
			return nil, err
		}
		if opts.RequestTimeout > 0 {
			restConfig.Timeout = opts.RequestTimeout
		}
		if opts.QPS > 0 {
			restConfig.QPS = opts.QPS
		}
		if opts.Burst > 0 {
			restConfig.Burst = opts.Burst
		}
		if opts.UserAgent != "" {
			restConfig.UserAgent = opts.UserAgent
		}
		return NewClient(e.ID, restConfig, logger)
	}
}

// HealthCheck pings the API server through the discovery API, which is a
// lightweight call. It returns the server version on success.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	type result struct {
		version string
		err     error
	}
	resultCh := make(chan result, 1)

	// Discovery has no context parameter, so race it against the timeout.
	go func() {
		version, err := c.Clientset.Discovery().ServerVersion()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{version: version.GitVersion}
	}()

	select {
	case <-healthCtx.Done():
		return "", fmt.Errorf("health check timeout: %w", healthCtx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to get server version: %w", res.err)
		}
		return res.version, nil
	}
}

// String returns a string representation of the client
func (c *Client) String() string {
	host := ""
	if c.RestConfig != nil {
		host = c.RestConfig.Host
	}
	return fmt.Sprintf("Client{Env: %s, Server: %s}", c.Env, host)
}
