package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-sensing/ingest"
	"github.com/maastricht-university/edmo-sensing/live"
	"github.com/maastricht-university/edmo-sensing/orchestrator"
	"github.com/maastricht-university/edmo-sensing/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Accept sensor frames over a websocket and record sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.conf.Server.Addr
			}
			ctx, cancel := signalContext()
			defer cancel()

			opts, closeSinks, err := a.sinks(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			p := orchestrator.NewPipeline(a.conf, opts...)
			go p.Run(ctx)

			err = ingest.NewServer(p, a.log).ListenAndServe(ctx, addr)
			if p.Recording() {
				// interrupted mid-session; keep what was recorded
				if _, serr := p.Stop(context.Background()); serr != nil {
					err = errors.Join(err, serr)
				}
			}
			return err
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return c
}

// sinks connects the configured session store and live publisher.
func (a *app) sinks(ctx context.Context) ([]orchestrator.Option, func(), error) {
	opts := []orchestrator.Option{orchestrator.WithLogger(a.log)}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	st, err := store.Open(ctx, a.conf.Store, a.log)
	if err != nil {
		return nil, nil, err
	}
	if st != nil {
		opts = append(opts, orchestrator.WithStore(st))
		closers = append(closers, st.Close)
	}

	if addr := a.conf.Live.RedisAddr; addr != "" {
		pub, err := live.ConnectRedis(ctx, addr, a.conf.Live.Channel)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opts = append(opts, orchestrator.WithPublisher(pub))
		closers = append(closers, func() { pub.Close() })
	}
	return opts, closeAll, nil
}
