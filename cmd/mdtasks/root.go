package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mdtasks/internal/config"
	"mdtasks/internal/index"
)

type app struct {
	cfg          config.Config
	closeLogging func()
}

func newRootCmd() *cobra.Command {
	a := &app{closeLogging: func() {}}
	root := &cobra.Command{
		Use:   "mdtasks",
		Short: "Track and toggle Markdown checklists",
		Long: `mdtasks reads the task checkboxes in a tree of Markdown files, nests them
under their headers and keeps every open view in sync when a box is toggled
or a file is edited.

Examples:
  mdtasks serve --root ~/notes          # web UI with live sync
  mdtasks tree plan.md                  # print the outline of one file
  mdtasks toggle plan.md 12             # flip the checkbox on line 12
  mdtasks tui plan.md                   # terminal outline
  mdtasks user add alice --role viewer  # add a read-only web user`,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			closeLogging, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			a.closeLogging = closeLogging
			index.SetBuildVersion(version())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.closeLogging()
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newScanCmd(a),
		newTreeCmd(a),
		newProgressCmd(a),
		newToggleCmd(a),
		newTUICmd(a),
		newUserCmd(a),
	)
	return root
}

func version() string {
	v := strings.TrimSpace(BuildVersion)
	if v == "" {
		return "dev"
	}
	return v
}
