package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"manifold/internal/api"
	"manifold/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()

			rows := [][]string{
				{"Running", yesNo(snapshot.Running)},
			}
			if snapshot.PID > 0 {
				rows = append(rows, []string{"PID", fmt.Sprintf("%d", snapshot.PID)})
			}
			if snapshot.StartedAt != "" {
				rows = append(rows, []string{"Started", snapshot.StartedAt})
			}
			rows = append(rows,
				[]string{"Socket", snapshot.SocketPath},
				[]string{"Archive", snapshot.ArchivePath},
				[]string{"Lock file", snapshot.LockPath},
			)
			if snapshot.APIBind != "" {
				rows = append(rows, []string{"API", snapshot.APIBind})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Daemon", ""},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			if snapshot.Running {
				fmt.Fprintf(stdout, "\nLive workflows: %d\n", snapshot.LiveWorkflows)
				if len(snapshot.States) > 0 {
					fmt.Fprintln(stdout, renderTable(
						[]string{"State", "Count"},
						stateCountRows(snapshot.States),
						[]columnAlignment{alignLeft, alignRight},
					))
				}
			}

			if len(snapshot.ArchivedByState) > 0 {
				fmt.Fprintln(stdout, "\nArchived workflows:")
				fmt.Fprintln(stdout, renderTable(
					[]string{"Final State", "Count"},
					stateCountRows(snapshot.ArchivedByState),
					[]columnAlignment{alignLeft, alignRight},
				))
			}
			return nil
		},
	}
}

func stateCountRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{api.DisplayName(name), fmt.Sprintf("%d", counts[name])})
	}
	return rows
}
