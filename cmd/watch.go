package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-sensing/live"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print live pipeline events from the Redis channel as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.conf.Live.RedisAddr == "" {
				return errors.New("live.redis_addr is not set")
			}
			ctx, cancel := signalContext()
			defer cancel()

			r, err := live.ConnectRedis(ctx, a.conf.Live.RedisAddr, a.conf.Live.Channel)
			if err != nil {
				return err
			}
			defer r.Close()

			a.log.WithField("channel", a.conf.Live.Channel).Info("watching events")
			enc := json.NewEncoder(cmd.OutOrStdout())
			for ev := range r.Subscribe(ctx) {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
