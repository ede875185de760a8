package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/aryankumar/fleetgate/internal/output"
	"github.com/aryankumar/fleetgate/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the fleetgate build and the client-go release it talks to clusters with.",
		// Printing the version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout(), viper.GetString("output"))
		},
	}

	return cmd
}

func runVersion(w io.Writer, outputFormat string) error {
	info := version.Get()

	// Without -o the plain banner is printed
	if strings.TrimSpace(outputFormat) == "" {
		fmt.Fprintln(w, info.String())
		return nil
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.NewFormatter(format).Format(w, info)
	}
	return output.NewTableFormatter(&output.Options{NoColor: true}).Format(w, map[string]interface{}{
		"Version":    info.Version,
		"Commit":     info.Commit,
		"Build Time": info.BuildTime,
		"Go Version": info.GoVersion,
		"client-go":  info.ClientGo,
		"Platform":   info.Platform,
	})
}
