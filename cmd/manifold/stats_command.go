package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"manifold/internal/ipc"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show orchestrator, bus, and deadline counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stats()
				if err != nil {
					return err
				}
				stats := resp.Stats
				stdout := cmd.OutOrStdout()

				fmt.Fprintln(stdout, renderTable(
					[]string{"Orchestrator", ""},
					[][]string{
						{"Running", yesNo(stats.Running)},
						{"Live workflows", fmt.Sprintf("%d", stats.LiveWorkflows)},
						{"Ingested", fmt.Sprintf("%d", stats.Ingested)},
						{"Merged inputs", fmt.Sprintf("%d", stats.Merged)},
						{"Completed", fmt.Sprintf("%d", stats.Completed)},
						{"Failed", fmt.Sprintf("%d", stats.Failed)},
						{"Errors", fmt.Sprintf("%d", stats.Errors)},
						{"Timeouts", fmt.Sprintf("%d", stats.Timeouts)},
						{"Retries", fmt.Sprintf("%d", stats.Retries)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))

				fmt.Fprintln(stdout, renderTable(
					[]string{"Bus", ""},
					[][]string{
						{"Published", fmt.Sprintf("%d", stats.Bus.Published)},
						{"Delivered", fmt.Sprintf("%d", stats.Bus.Delivered)},
						{"Expired", fmt.Sprintf("%d", stats.Bus.Expired)},
						{"Dropped", fmt.Sprintf("%d", stats.Bus.Dropped)},
						{"Audit entries", fmt.Sprintf("%d", stats.Bus.AuditSize)},
						{"Audit total", fmt.Sprintf("%d", stats.Bus.AuditTotal)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))

				if len(stats.Bus.Channels) > 0 {
					names := make([]string, 0, len(stats.Bus.Channels))
					for name := range stats.Bus.Channels {
						names = append(names, name)
					}
					sort.Strings(names)
					rows := make([][]string, 0, len(names))
					for _, name := range names {
						ch := stats.Bus.Channels[name]
						rows = append(rows, []string{
							name,
							fmt.Sprintf("%d", ch.Subscribers),
							fmt.Sprintf("%d", ch.QueueDepth),
						})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Channel", "Subscribers", "Queued"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignRight},
					))
				}

				fmt.Fprintln(stdout, renderTable(
					[]string{"Deadlines", ""},
					[][]string{
						{"Pending", fmt.Sprintf("%d", stats.Deadlines.Pending)},
						{"Expired", fmt.Sprintf("%d", stats.Deadlines.Expired)},
						{"Acknowledged", fmt.Sprintf("%d", stats.Deadlines.Acknowledged)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
