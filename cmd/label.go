package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-sensing/diarization"
	"github.com/maastricht-university/edmo-sensing/recording"
)

func newLabelCmd(a *app) *cobra.Command {
	var (
		outDir    string
		closeOpen bool
	)
	c := &cobra.Command{
		Use:   "label <faceinfo.json>",
		Short: "Derive speaker turn labels from a recorded face info export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			faces, err := recording.LoadJSON(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("close-open") {
				closeOpen = a.conf.Diarization.CloseOpenSegment
			}
			segs := diarization.Label(faces, closeOpen)

			if outDir == "" {
				return diarization.WriteJSON(cmd.OutOrStdout(), segs)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			// faceinfo53147.json -> labels53147.json
			stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(args[0]), "faceinfo"), ".json")
			jsonPath, csvPath, err := diarization.Export(outDir, segs, stamp)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"labels": len(segs), "json": jsonPath, "csv": csvPath}).Info("labels written")
			return nil
		},
	}
	c.Flags().StringVarP(&outDir, "out", "o", "", "write labels JSON and CSV into this directory instead of stdout")
	c.Flags().BoolVar(&closeOpen, "close-open", false, "close a segment still open at the last record (default diarization.close_open_segment)")
	return c
}
