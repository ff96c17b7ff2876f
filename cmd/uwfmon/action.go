package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhdewitt/uwfmon/internal/report"
	"github.com/nhdewitt/uwfmon/internal/uwf"
)

func newActionCmd(a *app) *cobra.Command {
	var yes bool

	names := make([]string, 0, len(uwf.Actions()))
	for _, act := range uwf.Actions() {
		names = append(names, string(act))
	}

	cmd := &cobra.Command{
		Use:       "action <" + strings.Join(names, "|") + ">",
		Short:     "Invoke a write filter method on the host",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := uwf.ParseAction(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("action %s changes the write filter of %s; rerun with --yes", action, a.hostLabel())
			}
			if a.host == "" && !isElevated() {
				return fmt.Errorf("action %s requires an elevated administrator session", action)
			}

			code, invokeErr := a.client.Invoke(cmd.Context(), action, a.host)

			r := report.ActionReport{
				Action: string(action),
				Method: action.Method(),
				Code:   code.String(),
			}
			if invokeErr != nil {
				r.Error = invokeErr.Error()
			}
			if err := a.writer.Write(report.NewEnvelope(a.host, r)); err != nil {
				return err
			}
			if invokeErr != nil {
				return SilentExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the action")
	return cmd
}
