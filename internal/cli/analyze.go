package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/logs2metrics/l2m/pkg/client"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		file      string
		timeFrom  string
		refreshMs int64
	)

	cmd := &cobra.Command{
		Use:   "analyze -f <panels.json>",
		Short: "Score dashboard panels for conversion to metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read panels file: %w", err)
			}

			var req client.AnalyzePanelsRequest
			if err := json.Unmarshal(data, &req); err != nil {
				// a bare array of panels is accepted too
				if err := json.Unmarshal(data, &req.Panels); err != nil {
					return fmt.Errorf("failed to parse panels file: %w", err)
				}
			}
			if timeFrom != "" {
				req.TimeFrom = timeFrom
			}
			if refreshMs > 0 {
				req.RefreshIntervalMs = refreshMs
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			results, err := apiClient.Rules().AnalyzePanels(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to analyze panels: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, results)
			}
			t := NewTable(out, "PANEL", "TITLE", "SCORE", "RECOMMENDATION")
			for _, r := range results {
				t.AddRow(
					r.Score.PanelID,
					truncate(r.Score.PanelTitle, 30),
					strconv.Itoa(r.Score.Total)+"/"+strconv.Itoa(r.Score.MaxTotal),
					r.Score.Recommendation,
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "panels file (JSON), - for stdin")
	cmd.Flags().StringVar(&timeFrom, "time-from", "", "dashboard lookback, e.g. now-7d")
	cmd.Flags().Int64Var(&refreshMs, "refresh-ms", 0, "dashboard auto-refresh interval in milliseconds")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Show the health reconciler state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			st, err := apiClient.Monitor(ctx)
			if err != nil {
				return fmt.Errorf("failed to get monitor state: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, st)
			}
			state := "stopped"
			if st.Running {
				state = "running"
			}
			fmt.Fprintf(out, "Reconciler:     %s (every %ds)\n", state, st.CheckIntervalSeconds)
			fmt.Fprintf(out, "Last check:     %s\n", formatTime(st.LastCheckTime))
			if len(st.RulesInError) == 0 {
				fmt.Fprintln(out, "Rules in error: none")
				return nil
			}
			fmt.Fprintf(out, "Rules in error: %v\n", st.RulesInError)
			return nil
		},
	}
}
