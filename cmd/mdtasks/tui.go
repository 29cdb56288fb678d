package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mdtasks/internal/storage/fs"
	"mdtasks/internal/syncer"
	"mdtasks/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui DOC",
		Short: "Browse and toggle one document's checklist in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := fs.NormalizeDocPath(args[0])
			if err != nil {
				return err
			}
			closeLog, err := fileOnlyLogging(a.cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			ws, err := openWorkspace(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer ws.Close()

			sink := tui.NewSink(doc, 0)
			coord := syncer.New(ws, sink, syncer.Options{
				Debounce:    debounce(a.cfg),
				ShowHeaders: a.cfg.ShowHeaders,
			})
			ws.Subscribe(coord.Changed)
			go func() { _ = coord.Run(ctx) }()
			if a.cfg.Watch {
				go func() { _ = ws.Watch(ctx) }()
			}

			if _, err := coord.Attach(ctx, doc, sink); err != nil {
				return err
			}
			err = tui.Run(ctx, doc, coord, sink)
			cancel()
			<-coord.Done()
			return err
		},
	}
}
