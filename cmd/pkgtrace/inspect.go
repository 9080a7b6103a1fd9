package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkgtrace/internal/packaging"
	"pkgtrace/internal/ui"
)

var (
	inspectFormat string
	inspectJobs   int
)

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "table", "output format (table|json)")
	inspectCmd.Flags().IntVar(&inspectJobs, "jobs", 0, "max parallel reads (0=auto)")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [binary...]",
	Short: "Show the loaders and strategies available for executables",
	Long: `Read the build info of each executable and report its main module,
dependency count and the resolution strategies that apply to it. Without
arguments the running pkgtrace binary is inspected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(inspectFormat)
		switch format {
		case "table", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be table or json)", inspectFormat)
		}
		reports, err := inspectTargets(cmd.Context(), args, inspectJobs)
		if err != nil {
			return err
		}
		if format == "json" {
			err = renderInspectJSON(cmd.OutOrStdout(), reports)
		} else {
			err = renderInspectTable(cmd.OutOrStdout(), reports)
		}
		if err != nil {
			return err
		}
		if failed := countFailed(reports); failed > 0 {
			return fmt.Errorf("%d of %d targets could not be read", failed, len(reports))
		}
		return nil
	},
}

// loaderReport describes one inspected executable.
type loaderReport struct {
	Target     string   `json:"target"`
	Loader     string   `json:"loader"`
	GoVersion  string   `json:"go_version,omitempty"`
	Main       string   `json:"main,omitempty"`
	Deps       int      `json:"deps"`
	Strategies []string `json:"strategies,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// inspectTargets reads every target concurrently. An empty list inspects the
// process loader. Read failures are recorded per report.
func inspectTargets(ctx context.Context, targets []string, jobs int) ([]loaderReport, error) {
	if len(targets) == 0 {
		targets = []string{""}
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	reports := make([]loaderReport, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = inspectTarget(target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func inspectTarget(target string) loaderReport {
	var reg *packaging.Registry
	if target == "" {
		reg = packaging.RegistryFor(nil)
	} else {
		l, err := packaging.LoaderFromBinary(target)
		if err != nil {
			return loaderReport{Target: target, Error: err.Error()}
		}
		// The loader is dropped after the report; keep it out of the
		// process-wide registry map.
		reg = packaging.NewRegistry(l, packaging.Detect(l)...)
	}
	loader := reg.Loader()
	rep := loaderReport{
		Target:     target,
		Loader:     loader.Name(),
		GoVersion:  loader.GoVersion(),
		Strategies: reg.StrategyNames(),
	}
	if target == "" {
		rep.Target = "(self)"
	}
	if main, ok := loader.MainModule(); ok {
		rep.Main = main.Path
		if main.Version != "" {
			rep.Main += "@" + main.Version
		}
	}
	if info, err := loader.BuildInfo(); err == nil && info != nil {
		rep.Deps = len(info.Deps)
	}
	return rep
}

func countFailed(reports []loaderReport) int {
	n := 0
	for _, r := range reports {
		if r.Error != "" {
			n++
		}
	}
	return n
}

func renderInspectJSON(out io.Writer, reports []loaderReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// Column widths in cells; longer values are truncated.
var inspectColumns = []struct {
	title string
	width int
}{
	{"TARGET", 28},
	{"GO", 10},
	{"MAIN", 36},
	{"DEPS", 5},
	{"STRATEGIES", 16},
}

func renderInspectTable(out io.Writer, reports []loaderReport) error {
	r := lipgloss.NewRenderer(out)
	header := r.NewStyle().Bold(true)
	failed := r.NewStyle().Foreground(lipgloss.Color("1"))

	cells := make([]string, len(inspectColumns))
	for i, col := range inspectColumns {
		cells[i] = header.Render(pad(col.title, col.width))
	}
	if _, err := fmt.Fprintln(out, strings.Join(cells, "  ")); err != nil {
		return err
	}

	for _, rep := range reports {
		var line string
		if rep.Error != "" {
			line = pad(rep.Target, inspectColumns[0].width) + "  " + failed.Render(rep.Error)
		} else {
			values := []string{
				rep.Target,
				rep.GoVersion,
				rep.Main,
				strconv.Itoa(rep.Deps),
				strings.Join(rep.Strategies, ","),
			}
			for i, col := range inspectColumns {
				cells[i] = pad(values[i], col.width)
			}
			line = strings.TrimRight(strings.Join(cells, "  "), " ")
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

// pad truncates or fills value to exactly width cells.
func pad(value string, width int) string {
	return runewidth.FillRight(ui.Truncate(value, width), width)
}
