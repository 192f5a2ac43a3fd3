package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"manifold/internal/ipc"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	var readings []string

	cmd := &cobra.Command{
		Use:   "feed <entity-id>",
		Short: "Inject a telemetry record for an entity",
		Long: `Feed hands one telemetry record to the running daemon, as if it had
arrived from an ingestion source. Readings are numeric key=value pairs, for
example: manifold feed VH-1042 -r engine_temp=104.5 -r vibration=0.81`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID := strings.TrimSpace(args[0])
			if entityID == "" {
				return fmt.Errorf("entity id is required")
			}
			parsed, err := parseReadings(readings)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Feed(ipc.FeedRequest{
					EntityID:  entityID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Readings:  parsed,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Fed record for %s\n", resp.Workflow.EntityID)
				fmt.Fprintf(stdout, "Workflow state: %s\n", resp.Workflow.StateDisplay)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&readings, "reading", "r", nil, "Telemetry reading as key=value (repeatable)")
	return cmd
}

func parseReadings(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid reading %q: expected key=value", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reading %q: %w", pair, err)
		}
		out[key] = value
	}
	return out, nil
}
