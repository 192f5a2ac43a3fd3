package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"manifold/internal/ipc"
)

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	var includeArchived bool
	var limit int

	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List live (and optionally archived) workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Workflows(includeArchived, limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Workflows) == 0 {
					fmt.Fprintln(stdout, "No workflows")
					return nil
				}
				rows := make([][]string, 0, len(resp.Workflows))
				for _, wf := range resp.Workflows {
					rows = append(rows, []string{
						wf.EntityID,
						wf.StateDisplay,
						wf.Urgency,
						fmt.Sprintf("%d", wf.RetryCount),
						fmt.Sprintf("%d", wf.ErrorCount),
						wf.UpdatedAt,
						yesNo(wf.Archived),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Entity", "State", "Urgency", "Retries", "Errors", "Updated", "Archived"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&includeArchived, "archived", "a", false, "Include archived workflows")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of workflows to list")
	return cmd
}
