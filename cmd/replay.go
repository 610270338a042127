package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-sensing/ingest"
	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

func newReplayCmd(a *app) *cobra.Command {
	var withSinks bool
	c := &cobra.Command{
		Use:   "replay <capture.jsonl>",
		Short: "Feed a recorded capture through the pipeline and export its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := signalContext()
			defer cancel()

			clock := ingest.NewClock(time.Time{})
			opts := []orchestrator.Option{orchestrator.WithLogger(a.log)}
			if withSinks {
				sinkOpts, closeSinks, err := a.sinks(ctx)
				if err != nil {
					return err
				}
				defer closeSinks()
				opts = sinkOpts
			}
			opts = append(opts, orchestrator.WithClock(clock.Now))

			p := orchestrator.NewPipeline(a.conf, opts...)
			runCtx, stopRun := context.WithCancel(ctx)
			defer stopRun()
			go p.Run(runCtx)

			sessions, err := ingest.NewReplay(p, clock, a.log).Run(ctx, f)
			for _, s := range sessions {
				a.log.WithFields(logrus.Fields{
					"session": s.ID, "records": s.Summary.Records, "turns": s.Summary.Turns,
				}).Info("session replayed")
				fmt.Fprintln(cmd.OutOrStdout(), s.Dir)
			}
			return err
		},
	}
	c.Flags().BoolVar(&withSinks, "sinks", false, "also write sessions to the configured store and live channel")
	return c
}
