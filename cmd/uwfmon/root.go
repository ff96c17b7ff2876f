package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhdewitt/uwfmon/internal/cim"
	"github.com/nhdewitt/uwfmon/internal/config"
	"github.com/nhdewitt/uwfmon/internal/logging"
	"github.com/nhdewitt/uwfmon/internal/privilege"
	"github.com/nhdewitt/uwfmon/internal/report"
	"github.com/nhdewitt/uwfmon/internal/uwf"
)

var (
	newDialer  = cim.NewDialer
	isElevated = privilege.Elevated
	isTerminal = term.IsTerminal
)

const (
	flagConfig   = "config"
	flagHost     = "host"
	flagLogLevel = "log-level"
	flagOutput   = "output"
)

// app is the state shared by every subcommand once flags are resolved.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	client *uwf.Client
	host   string
	writer *report.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "uwfmon",
		Short:         "Inspect and control the Unified Write Filter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagConfig, os.Getenv("UWFMON_CONFIG"), "path to a TOML config file")
	flags.String(flagHost, "", "target host (default local machine)")
	flags.String(flagLogLevel, "", "log level (debug, info, warn, error)")
	flags.StringP(flagOutput, "o", "", "output format: "+strings.Join(report.SupportedFormats(), "|"))

	cmd.AddCommand(
		newStatusCmd(a),
		newVolumesCmd(a),
		newInstalledCmd(a),
		newActionCmd(a),
		newExporterCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()

	path, _ := flags.GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if flags.Changed(flagHost) {
		cfg.Host, _ = flags.GetString(flagHost)
	}
	if flags.Changed(flagLogLevel) {
		cfg.Log.Level, _ = flags.GetString(flagLogLevel)
	}

	log, err := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	output, _ := flags.GetString(flagOutput)
	format := report.Format(strings.ToLower(output))
	switch {
	case output == "":
		format = report.FormatJSON
		if isTerminal(int(os.Stdout.Fd())) && cmd.OutOrStdout() == os.Stdout {
			format = report.FormatTable
		}
	case format.IsUnknown():
		return fmt.Errorf("unknown output format %q: want one of %s", output, strings.Join(report.SupportedFormats(), ", "))
	}

	a.cfg = cfg
	a.log = log
	a.host = cfg.Host
	a.writer = report.NewWriter(format, cmd.OutOrStdout())
	a.client = uwf.New(newDialer(),
		uwf.WithLogger(log),
		uwf.WithSessionTimeout(cfg.Query.SessionTimeout.Std()),
		uwf.WithOperationTimeout(cfg.Query.OperationTimeout.Std()),
		uwf.WithWorkers(cfg.Query.Workers),
	)
	return nil
}
