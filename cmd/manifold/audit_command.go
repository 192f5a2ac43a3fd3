package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"manifold/internal/ipc"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent message-bus audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Audit(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Audit log is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						entry.Timestamp,
						entry.Channel,
						entry.Action,
						entry.Type,
						entry.Priority,
						entry.Sender,
						shortID(entry.CorrelationID),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Timestamp", "Channel", "Action", "Type", "Priority", "Sender", "Correlation"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of entries to show, newest last")
	return cmd
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
