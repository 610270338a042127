// Package cmd holds the edmo-sensing command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/maastricht-university/edmo-sensing/config"
)

type app struct {
	v       *viper.Viper
	cfgPath string
	conf    *cfg.Root
	log     *logrus.Logger
}

// NewRootCmd builds the command tree. Every subcommand sees the loaded
// configuration and logger.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "edmo-sensing",
		Short:         "Head direction and speaker turn recording for EDMO sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level override")
	root.PersistentFlags().String("outputs", "", "session output directory override")
	a.v.BindPFlag("pipeline.log_level", root.PersistentFlags().Lookup("log-level"))
	a.v.BindPFlag("paths.outputs", root.PersistentFlags().Lookup("outputs"))

	root.AddCommand(
		newServeCmd(a),
		newReplayCmd(a),
		newLabelCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load() error {
	conf, err := cfg.Load(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	log, err := conf.Logger()
	if err != nil {
		return err
	}
	a.conf, a.log = conf, log
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
