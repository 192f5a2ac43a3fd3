package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"manifold/internal/api"
	"manifold/internal/ipc"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <entity-id>",
		Short: "Show one workflow in detail, including its transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID := strings.TrimSpace(args[0])
			if entityID == "" {
				return fmt.Errorf("entity id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(entityID)
				if err != nil {
					return err
				}
				printWorkflowDetail(cmd, resp.Workflow)
				return nil
			})
		},
	}
}

func printWorkflowDetail(cmd *cobra.Command, wf ipc.WorkflowSummary) {
	stdout := cmd.OutOrStdout()

	rows := [][]string{
		{"Entity", wf.EntityID},
		{"State", wf.StateDisplay},
		{"Correlation", wf.CorrelationID},
		{"Retries", fmt.Sprintf("%d", wf.RetryCount)},
		{"Errors", fmt.Sprintf("%d", wf.ErrorCount)},
		{"Archived", yesNo(wf.Archived)},
	}
	if wf.Urgency != "" {
		rows = append(rows, []string{"Urgency", wf.Urgency})
	}
	if wf.MergedInputs > 0 {
		rows = append(rows, []string{"Merged inputs", fmt.Sprintf("%d", wf.MergedInputs)})
	}
	if wf.FailureReason != "" {
		rows = append(rows, []string{"Failure reason", wf.FailureReason})
	}
	if wf.CreatedAt != "" {
		rows = append(rows, []string{"Created", wf.CreatedAt})
	}
	if wf.UpdatedAt != "" {
		rows = append(rows, []string{"Updated", wf.UpdatedAt})
	}
	if wf.DurationSeconds > 0 {
		rows = append(rows, []string{"Duration", fmt.Sprintf("%.1fs", wf.DurationSeconds)})
	}
	if summary := api.AnalysisSummary(string(wf.Context)); summary != "" {
		rows = append(rows, []string{"Analysis", summary})
	}
	if slot := api.ScheduledSlot(string(wf.Context)); slot != "" {
		rows = append(rows, []string{"Scheduled slot", slot})
	}
	if outcome := api.OutcomeNote(string(wf.Context)); outcome != "" {
		rows = append(rows, []string{"Outcome", outcome})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Workflow", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))

	if len(wf.History) == 0 {
		return
	}
	historyRows := make([][]string, 0, len(wf.History))
	for _, tr := range wf.History {
		historyRows = append(historyRows, []string{
			tr.Timestamp,
			api.DisplayName(tr.From),
			api.DisplayName(tr.To),
			tr.Reason,
		})
	}
	fmt.Fprintln(stdout, "\nHistory:")
	fmt.Fprintln(stdout, renderTable(
		[]string{"Timestamp", "From", "To", "Reason"},
		historyRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
}
