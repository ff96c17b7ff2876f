package main

import (
	"github.com/spf13/cobra"

	"github.com/nhdewitt/uwfmon/internal/report"
	"github.com/nhdewitt/uwfmon/internal/uwf"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Collect the full write filter state of the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.log.WithField("host", a.hostLabel())

			state, code := a.client.FeatureInstalled(ctx, a.host)
			if code.Failed() {
				log.WithField("code", code.String()).Warn("install state query failed")
			}

			stores := uwf.NewStores()
			res := a.client.Collect(ctx, a.host, stores)

			vols, err := a.client.EnumerateVolumes(ctx, a.host)
			if err != nil {
				log.WithError(err).Warn("volume enumeration failed")
			}

			snap, err := uwf.BuildSnapshot(stores, vols)
			if err != nil {
				log.WithError(err).Warn("snapshot has malformed values")
			}

			status := report.Evaluate(res, stores)
			env := report.NewEnvelope(a.host, report.StatusReport{
				Cycle:     res.ID,
				Installed: state.String(),
				Outcome:   res.Outcome.String(),
				Code:      res.Code.String(),
				Status:    status,
				Snapshot:  snap,
				Duration:  res.Duration.String(),
			})
			if err := a.writer.Write(env); err != nil {
				return err
			}
			if !status.OK() {
				return SilentExitError{Code: 1}
			}
			return nil
		},
	}
}

func newVolumesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "volumes",
		Short: "List the volumes known to the write filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vols, err := a.client.EnumerateVolumes(cmd.Context(), a.host)
			if err != nil {
				return err
			}
			return a.writer.Write(report.NewEnvelope(a.host, report.NewVolumeReport(vols)))
		},
	}
}

func newInstalledCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "Report whether the write filter feature is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, code := a.client.FeatureInstalled(cmd.Context(), a.host)

			r := report.InstallReport{
				State:     state.String(),
				Installed: state.Installed(),
				Code:      code.String(),
			}
			if code.Failed() {
				r.Error = "install state query failed"
			}
			if err := a.writer.Write(report.NewEnvelope(a.host, r)); err != nil {
				return err
			}
			if code.Failed() {
				return SilentExitError{Code: 1}
			}
			return nil
		},
	}
}

func (a *app) hostLabel() string {
	if a.host == "" {
		return "localhost"
	}
	return a.host
}
