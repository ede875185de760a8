package get

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	workloadPodColumns = []string{"namespace", "name", "status", "pod_ready", "restart_count", "node_name", "pod_ip", "image", "event_reason"}
	endpointColumns    = []string{"ip", "pod_name", "node_name", "ports"}
	ruleColumns        = []string{"host", "path", "path_type", "backend_name", "backend_port"}
)

type getOptions struct {
	namespace string
	pods      bool
	endpoints bool
	rules     bool
}

// NewGetCmd creates the get command
func NewGetCmd() *cobra.Command {
	opts := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get <kind> [name]",
		Short: "Get resources from an environment",
		Long: fmt.Sprintf(`List resources of one kind, or print one resource as a re-appliable document.

Supported kinds: %s. Plural and short names (po, svc, ing, cm, sts, ds, no)
are accepted.`, strings.Join(gateway.KindNames(), ", ")),
		Example: `  # List pods in a namespace
  fleetgate get pods -e prod -n web

  # List nodes as JSON
  fleetgate get nodes -e prod -o json

  # Print a ConfigMap as YAML ready for apply
  fleetgate get cm settings -e prod -n web

  # List the pods of a StatefulSet
  fleetgate get sts db -e prod -n data --pods

  # Show the ready endpoints of a Service
  fleetgate get svc api -e prod -n web --endpoints`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "namespace; empty lists every namespace")
	cmd.Flags().BoolVar(&opts.pods, "pods", false, "list the pods of the named StatefulSet or DaemonSet")
	cmd.Flags().BoolVar(&opts.endpoints, "endpoints", false, "show the ready endpoints of the named Service")
	cmd.Flags().BoolVar(&opts.rules, "rules", false, "show the routing rules of the named Ingress")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")

	return cmd
}

func runGet(cmd *cobra.Command, args []string, opts *getOptions) error {
	kind, err := gateway.ParseKind(args[0])
	if err != nil {
		return err
	}
	envID, err := app.EnvID(cmd)
	if err != nil {
		return err
	}
	a, err := app.Load(cmd)
	if err != nil {
		return err
	}
	formatter, err := app.Formatter(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := app.WithTimeout(cmd.Context())
	defer cancel()

	if len(args) == 1 {
		if opts.pods || opts.endpoints || opts.rules {
			return fmt.Errorf("--pods, --endpoints and --rules need a resource name")
		}
		slog.Debug("listing resources", "env", envID, "kind", kind, "namespace", opts.namespace)
		items, err := a.Gateway.List(ctx, envID, kind, opts.namespace)
		if err != nil {
			return err
		}
		return formatter.FormatResources(app.Out(cmd), gateway.Columns(kind), items)
	}

	ref := gateway.ResourceRef{Env: envID, Namespace: opts.namespace, Kind: kind, Name: args[1]}

	switch {
	case opts.pods:
		items, err := a.Gateway.WorkloadPods(ctx, ref)
		if err != nil {
			return err
		}
		return formatter.FormatResources(app.Out(cmd), workloadPodColumns, items)

	case opts.endpoints:
		if kind != gateway.KindService {
			return fmt.Errorf("--endpoints is only valid for services")
		}
		subsets, err := a.Gateway.GetEndpoints(ctx, ref)
		if err != nil {
			return err
		}
		return formatter.FormatResources(app.Out(cmd), endpointColumns, endpointRows(subsets))

	case opts.rules:
		if kind != gateway.KindIngress {
			return fmt.Errorf("--rules is only valid for ingresses")
		}
		rules, err := a.Gateway.IngressRules(ctx, ref)
		if err != nil {
			return err
		}
		return formatter.FormatResources(app.Out(cmd), ruleColumns, ruleRows(rules))
	}

	content, err := a.Gateway.GetContent(ctx, ref)
	if err != nil {
		return err
	}

	// A single object prints as its document unless JSON was asked for
	if format, _ := output.ParseFormat(viper.GetString("output")); format == output.FormatJSON {
		return formatter.Format(app.Out(cmd), content.Object.Object)
	}
	_, err = fmt.Fprint(app.Out(cmd), content.YAML)
	return err
}

// endpointRows flattens subsets to one row per ready address
func endpointRows(subsets []gateway.EndpointSubset) []gateway.Resource {
	rows := make([]gateway.Resource, 0)
	for _, subset := range subsets {
		ports := make([]string, 0, len(subset.Ports))
		for _, p := range subset.Ports {
			port := fmt.Sprintf("%d/%s", p.Port, p.Protocol)
			if p.Name != "" {
				port = p.Name + ":" + port
			}
			ports = append(ports, port)
		}
		for _, addr := range subset.Addresses {
			rows = append(rows, gateway.Resource{
				"ip":        addr.IP,
				"pod_name":  addr.PodName,
				"node_name": addr.NodeName,
				"ports":     ports,
			})
		}
	}
	return rows
}

func ruleRows(rules []gateway.IngressRule) []gateway.Resource {
	rows := make([]gateway.Resource, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, gateway.Resource{
			"host":         r.Host,
			"path":         r.Path,
			"path_type":    r.PathType,
			"backend_name": r.BackendName,
			"backend_port": r.BackendPort,
		})
	}
	return rows
}
