// Package version provides build information, the node user-agent comment and
// the version command for the supervisor launcher.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/waglayla/waglayla-supervisor/internal/version.Version={{.Version}}
//	-X github.com/waglayla/waglayla-supervisor/internal/version.GitDescribe=$(git describe --always --dirty)
//	-X github.com/waglayla/waglayla-supervisor/internal/version.BuildDate={{.Date}}
var (
	// Version is the semantic version of the application.
	Version = "0.1.0-dev"

	// GitDescribe is the output of `git describe` at build time.
	GitDescribe = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// AppName is the short application name used in the node user agent.
const AppName = "wagsup"

// Info contains all version and build information.
type Info struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	GitDescribe string   `json:"git_describe" yaml:"git_describe"`
	BuildDate   string   `json:"build_date,omitempty" yaml:"build_date,omitempty"`
	GoVersion   string   `json:"go" yaml:"go"`
	UserAgent   string   `json:"user_agent" yaml:"user_agent"`
	BuildTags   string   `json:"build_tags,omitempty" yaml:"build_tags,omitempty"`
	BuildDeps   []string `json:"build_deps,omitempty" yaml:"build_deps,omitempty"`
}

// NewInfo creates a new Info for the given binary name.
func NewInfo(name string) Info {
	return Info{
		Name:        name,
		Version:     Version,
		GitDescribe: GitDescribe,
		BuildDate:   BuildDate,
		GoVersion:   fmt.Sprintf("go version %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		UserAgent:   UAComment(),
	}
}

// UAComment returns the user-agent comment passed to the node daemon,
// "<app>-<version>-<git describe>". Characters the node rejects in a
// user-agent comment are replaced with '_'.
func UAComment() string {
	raw := fmt.Sprintf("%s-%s-%s", AppName, Version, GitDescribe)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', ':', '(', ')', '[', ']', ',':
			return '_'
		}
		return r
	}, raw)
}

// WithBuildDeps populates the build tags and dependencies from runtime/debug.
func (i Info) WithBuildDeps() Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}

	var buildTags []string
	for _, setting := range buildInfo.Settings {
		if setting.Key == "-tags" && setting.Value != "" {
			buildTags = append(buildTags, setting.Value)
		}
	}
	if len(buildTags) > 0 {
		i.BuildTags = strings.Join(buildTags, ",")
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		depStr := fmt.Sprintf("%s@%s", dep.Path, dep.Version)
		if dep.Replace != nil {
			depStr = fmt.Sprintf("%s@%s => %s@%s", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
		}
		deps = append(deps, depStr)
	}
	sort.Strings(deps)
	i.BuildDeps = deps

	return i
}

// String returns a formatted string representation of the version info.
func (i Info) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s version %s\n", i.Name, i.Version))
	sb.WriteString(fmt.Sprintf("  git:        %s\n", i.GitDescribe))
	sb.WriteString(fmt.Sprintf("  build date: %s\n", i.BuildDate))
	sb.WriteString(fmt.Sprintf("  go:         %s\n", i.GoVersion))
	sb.WriteString(fmt.Sprintf("  uacomment:  %s\n", i.UserAgent))
	return sb.String()
}

// LongString returns a YAML document including build dependencies.
func (i Info) LongString() string {
	data, err := yaml.Marshal(i)
	if err != nil {
		return i.String()
	}
	return string(data)
}

// JSON returns the version info as a JSON string.
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewCmd creates a version command for the given binary name.
func NewCmd(name string) *cobra.Command {
	var (
		long       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information including build details. Use --long for detailed dependency info.",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := NewInfo(name)
			if long {
				info = info.WithBuildDeps()
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				output, err := info.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, output)
				return nil
			}

			if long {
				fmt.Fprint(out, info.LongString())
			} else {
				fmt.Fprint(out, info.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&long, "long", false, "Show detailed version info including build dependencies")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info in JSON format")

	return cmd
}
