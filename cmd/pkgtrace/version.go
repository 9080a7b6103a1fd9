package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkgtrace/internal/version"
)

type versionOptions struct {
	format   string
	showHash bool
	showDate bool
}

type versionPayload struct {
	Tool string `json:"tool"`
	version.Info
}

var (
	versionFormat   string
	versionShowHash bool
	versionShowDate bool
	versionShowFull bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShowHash, "hash", false, "include git commit hash")
	versionCmd.Flags().BoolVar(&versionShowDate, "date", false, "include build timestamp")
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show pkgtrace build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := versionOptions{
			format:   strings.ToLower(versionFormat),
			showHash: versionShowHash || versionShowFull,
			showDate: versionShowDate || versionShowFull,
		}
		switch opts.format {
		case "pretty", "json":
			// supported
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}

		info := version.Current()
		if opts.format == "json" {
			return renderVersionJSON(cmd.OutOrStdout(), info)
		}
		renderVersionPretty(cmd.OutOrStdout(), info, opts)
		return nil
	},
}

func renderVersionPretty(out io.Writer, info version.Info, opts versionOptions) {
	fmt.Fprintf(out, "pkgtrace %s (%s, %s)\n", version.Colored(info.Version), info.GoVersion, info.Platform)
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, info version.Info) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(versionPayload{Tool: "pkgtrace", Info: info})
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
