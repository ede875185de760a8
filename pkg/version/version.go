// Package version reports build information. Values set with -ldflags win;
// otherwise they are taken from the module build info when available.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version (set at build time via ldflags)
	Version = "dev"
	// Commit is the git commit hash (set at build time via ldflags)
	Commit = "unknown"
	// BuildTime is the build timestamp (set at build time via ldflags)
	BuildTime = "unknown"
)

const clientGoModule = "k8s.io/client-go"

// readBuildInfo is replaced in tests
var readBuildInfo = debug.ReadBuildInfo

// Info contains version information
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"buildTime"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	ClientGo  string `json:"clientGo" yaml:"clientGo"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the version information
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		ClientGo:  "unknown",
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == clientGoModule {
			info.ClientGo = dep.Version
			break
		}
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == "unknown":
			info.BuildTime = s.Value
		}
	}
	return info
}

// UserAgent is sent on every Kubernetes API request, e.g. fleetgate/v1.2.0 (linux/amd64)
func UserAgent() string {
	return fmt.Sprintf("fleetgate/%s (%s/%s)", Get().Version, runtime.GOOS, runtime.GOARCH)
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("fleetgate\n  Version:    %s\n  Commit:     %s\n  Build Time: %s\n  Go Version: %s\n  client-go:  %s\n  Platform:   %s",
		i.Version, i.Commit, i.BuildTime, i.GoVersion, i.ClientGo, i.Platform)
}
