package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nhdewitt/uwfmon/internal/config"
	"github.com/nhdewitt/uwfmon/internal/exporter"
)

func newExporterCmd(a *app) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exporter",
		Short: "Serve write filter state as Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Exporter.Listen = listen
			}
			if cmd.Flags().Changed("interval") {
				a.cfg.Exporter.Interval = config.Duration(interval)
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			e := exporter.New(a.client, a.cfg.ExporterHosts(), a.cfg.Exporter.Interval.Std(), a.log)
			return exporter.Serve(cmd.Context(), a.cfg.Exporter.Listen, e)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "metrics listen address")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval")
	return cmd
}
