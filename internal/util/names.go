package util

import (
	"strings"
)

// ShortClusterName extracts the short cluster name from an ARN or returns the original name.
// AWS EKS ARNs have the format: arn:aws:eks:region:account-id:cluster/cluster-name
func ShortClusterName(name string) string {
	if !strings.HasPrefix(name, "arn:") {
		return name
	}

	if idx := strings.LastIndex(name, "cluster/"); idx != -1 {
		return name[idx+len("cluster/"):]
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}
	if idx := strings.LastIndex(name, ":"); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// EnvironmentID derives an environment id from a kubeconfig context name.
// ARNs are shortened, the result is lowercased and every character outside
// [a-z0-9-_.] becomes '-', so ids are safe as query parameter values.
func EnvironmentID(contextName string) string {
	short := strings.ToLower(strings.TrimSpace(ShortClusterName(contextName)))

	var sb strings.Builder
	sb.Grow(len(short))
	for _, r := range short {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
