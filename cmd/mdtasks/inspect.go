package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mdtasks/internal/index"
)

// readSource reads a file, or stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

type candidateJSON struct {
	Line    int            `json:"line"`
	Kind    index.LineKind `json:"kind"`
	Key     int            `json:"key"`
	Checked bool           `json:"checked,omitempty"`
	Label   string         `json:"label"`
}

func newScanCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan FILE",
		Short: "List the header and checkbox lines of a Markdown file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, c := range index.Scan(text) {
				if err := enc.Encode(candidateJSON{Line: c.Line, Kind: c.Kind, Key: c.Key, Checked: c.Checked, Label: c.Label}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the checklist outline of a Markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			forest := index.BuildText(text)
			progress := index.Aggregate(forest)
			if !a.cfg.ShowHeaders {
				forest = forest.FlattenHeaders()
			}
			out := cmd.OutOrStdout()
			if asJSON {
				items := forest.Tree()
				if items == nil {
					items = []index.TreeItem{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Progress index.Progress   `json:"progress"`
					Items    []index.TreeItem `json:"items"`
				}{progress, items})
			}
			writeOutline(out, forest)
			fmt.Fprintf(out, "\n%d/%d done (%d%%)\n", progress.Completed, progress.Total, progress.Percent())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outline as JSON")
	return cmd
}

// writeOutline prints one node per line with 1-based source line numbers.
func writeOutline(w io.Writer, f *index.Forest) {
	f.Walk(func(n *index.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)
		switch {
		case !n.IsCheckbox():
			fmt.Fprintf(w, "%4d  %s%s %s\n", n.Line+1, indent, strings.Repeat("#", n.Level), n.Label)
		case n.Checked:
			fmt.Fprintf(w, "%4d  %s[x] %s\n", n.Line+1, indent, n.Label)
		default:
			fmt.Fprintf(w, "%4d  %s[ ] %s\n", n.Line+1, indent, n.Label)
		}
		return true
	})
}

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress [FILE...]",
		Short: "Report completed and total checkboxes",
		Long: `With files, progress reads each file directly. Without arguments it reports
every document of the workspace from the task index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()
			var total index.Progress
			if len(args) > 0 {
				for _, path := range args {
					text, err := readSource(cmd, path)
					if err != nil {
						return err
					}
					p := index.Aggregate(index.BuildText(text))
					fmt.Fprintf(tw, "%s\t%d/%d\t%d%%\n", path, p.Completed, p.Total, p.Percent())
					total.Completed += p.Completed
					total.Total += p.Total
				}
			} else {
				ws, err := openWorkspace(cmd.Context(), a.cfg)
				if err != nil {
					return err
				}
				defer ws.Close()
				docs, err := ws.Store().Documents(cmd.Context())
				if err != nil {
					return err
				}
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%d/%d\t%d%%\n", d.Path, d.Progress.Completed, d.Progress.Total, d.Progress.Percent())
					total.Completed += d.Progress.Completed
					total.Total += d.Progress.Total
				}
			}
			fmt.Fprintf(tw, "total\t%d/%d\t%d%%\n", total.Completed, total.Total, total.Percent())
			return nil
		},
	}
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle DOC LINE",
		Short: "Flip the checkbox on a line of a workspace document",
		Long:  "DOC is relative to the workspace root. LINE is 1-based, as printed by tree.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := strconv.Atoi(args[1])
			if err != nil || line < 1 {
				return fmt.Errorf("invalid line %q", args[1])
			}
			ws, err := openWorkspace(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer ws.Close()
			res, err := ws.ToggleLine(cmd.Context(), args[0], line-1)
			if err != nil {
				return err
			}
			if res != index.Toggled {
				return fmt.Errorf("%s line %d: %s", args[0], line, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s line %d: %s\n", args[0], line, res)
			return nil
		},
	}
}
