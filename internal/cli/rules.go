package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/logs2metrics/l2m/pkg/client"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage log-to-metric rules",
	}

	cmd.AddCommand(newRulesListCmd())
	cmd.AddCommand(newRulesGetCmd())
	cmd.AddCommand(newRulesCreateCmd())
	cmd.AddCommand(newRulesSetStatusCmd("activate", client.StatusActive, "Provision a rule's transform"))
	cmd.AddCommand(newRulesSetStatusCmd("pause", client.StatusPaused, "Stop a rule's transform and keep the rule"))
	cmd.AddCommand(newRulesDeleteCmd())
	cmd.AddCommand(newRulesStatusCmd())
	cmd.AddCommand(newRulesEstimateCmd())
	cmd.AddCommand(newRulesValidateCmd())

	return cmd
}

func newRulesListCmd() *cobra.Command {
	var opts client.RuleListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			list, err := apiClient.Rules().List(ctx, &opts)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, list)
			}

			t := NewTable(out, "ID", "NAME", "OWNER", "STATUS", "COMPUTE", "INDEX", "BUCKET")
			for _, r := range list.Data {
				t.AddRow(
					strconv.FormatInt(r.ID, 10),
					truncate(r.Name, 30),
					truncate(r.Owner, 16),
					formatStatus(r.Status),
					computeLabel(r.Compute),
					truncate(r.Source.IndexPattern, 24),
					r.GroupBy.TimeBucket,
				)
			}
			t.Render()
			fmt.Fprintf(out, "\nShowing %d of %d rules (page %d/%d)\n", len(list.Data), list.TotalItems, list.Page, list.TotalPages)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (draft, active, paused, error)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "filter by owner")
	cmd.Flags().StringVar(&opts.Search, "search", "", "filter by name")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 50, "rules per page")

	return cmd
}

func newRulesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <rule-id>",
		Short: "Show a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			r, err := apiClient.Rules().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, r)
			}
			printRule(out, r)
			return nil
		},
	}
}

func newRulesCreateCmd() *cobra.Command {
	var (
		file           string
		activate       bool
		skipGuardrails bool
	)

	cmd := &cobra.Command{
		Use:   "create -f <file>",
		Short: "Create a rule from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRuleFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if activate {
				req.Status = client.StatusActive
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			r, err := apiClient.Rules().Create(ctx, *req, &client.CreateOptions{SkipGuardrails: skipGuardrails})
			if apiErr, ok := client.AsAPIError(err); ok && apiErr.IsGuardrailFailure() {
				fmt.Fprintln(out, "Rule rejected by guardrails:")
				printGuardrailDetails(out, apiErr.Details)
				return fmt.Errorf("guardrails failed; fix the rule or pass --skip-guardrails")
			}
			if err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			if !isTable() {
				return printOutput(out, r)
			}
			fmt.Fprintf(out, "Rule %d created (%s)\n", r.ID, formatStatus(r.Status))
			if r.StatusReason != "" {
				fmt.Fprintf(out, "Reason: %s\n", r.StatusReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "rule definition file, - for stdin")
	cmd.Flags().BoolVar(&activate, "activate", false, "provision the rule immediately")
	cmd.Flags().BoolVar(&skipGuardrails, "skip-guardrails", false, "create even if guardrail checks fail")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newRulesSetStatusCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			r, err := apiClient.Rules().SetStatus(ctx, id, status)
			if err != nil {
				return fmt.Errorf("failed to %s rule: %w", use, err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, r)
			}
			fmt.Fprintf(out, "Rule %d is now %s\n", r.ID, formatStatus(r.Status))
			if r.StatusReason != "" {
				fmt.Fprintf(out, "Reason: %s\n", r.StatusReason)
			}
			return nil
		},
	}
}

func newRulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule and its transform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			if err := apiClient.Rules().Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d deleted\n", id)
			return nil
		},
	}
}

func newRulesStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <rule-id>",
		Short: "Show the live transform state of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			st, err := apiClient.Rules().Status(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, st)
			}

			fmt.Fprintf(out, "Transform:       %s\n", st.TransformID)
			fmt.Fprintf(out, "Health:          %s\n", formatStatus(st.Health))
			fmt.Fprintf(out, "Docs processed:  %d\n", st.DocsProcessed)
			fmt.Fprintf(out, "Docs indexed:    %d\n", st.DocsIndexed)
			fmt.Fprintf(out, "Last checkpoint: %s\n", formatTime(st.LastCheckpoint))
			if st.Error != "" {
				fmt.Fprintf(out, "Error:           %s\n", st.Error)
			}
			return nil
		},
	}
}

func newRulesEstimateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "estimate -f <file>",
		Short: "Estimate storage savings and run guardrails without creating the rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRuleFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			est, err := apiClient.Rules().Estimate(ctx, *req)
			if err != nil {
				return fmt.Errorf("failed to estimate rule: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, est)
			}
			printEstimate(out, est)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "rule definition file, - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate -f <file>",
		Short: "Check a rule against the live index mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRuleFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			res, err := apiClient.Rules().Validate(ctx, *req)
			if err != nil {
				return fmt.Errorf("failed to validate rule: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, res)
			}
			if res.Valid {
				fmt.Fprintln(out, "Rule is valid")
				return nil
			}
			fmt.Fprintln(out, "Rule is invalid:")
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "rule definition file, - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// loadRuleFile reads a rule definition. YAML is a superset of JSON, so one
// decoder covers both.
func loadRuleFile(path string, stdin io.Reader) (*client.CreateRuleRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var req client.CreateRuleRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("rule file has no name")
	}
	return &req, nil
}

func parseRuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid rule ID: %s", s)
	}
	return id, nil
}

func computeLabel(c client.ComputeConfig) string {
	if c.Field == "" {
		return c.Type
	}
	return c.Type + "(" + c.Field + ")"
}

func printRule(out io.Writer, r *client.Rule) {
	fmt.Fprintf(out, "ID:          %d\n", r.ID)
	fmt.Fprintf(out, "Name:        %s\n", r.Name)
	fmt.Fprintf(out, "Owner:       %s\n", r.Owner)
	fmt.Fprintf(out, "Status:      %s\n", formatStatus(r.Status))
	if r.StatusReason != "" {
		fmt.Fprintf(out, "Reason:      %s\n", r.StatusReason)
	}
	fmt.Fprintf(out, "Index:       %s (time field %s)\n", r.Source.IndexPattern, r.Source.TimeField)
	fmt.Fprintf(out, "Compute:     %s\n", computeLabel(r.Compute))
	if len(r.Compute.Percentiles) > 0 {
		fmt.Fprintf(out, "Percentiles: %v\n", r.Compute.Percentiles)
	}
	fmt.Fprintf(out, "Bucket:      %s every %s, delay %s\n", r.GroupBy.TimeBucket, r.GroupBy.Frequency, r.GroupBy.SyncDelay)
	if len(r.GroupBy.Dimensions) > 0 {
		fmt.Fprintf(out, "Dimensions:  %s\n", strings.Join(r.GroupBy.Dimensions, ", "))
	}
	if r.Backend != nil {
		fmt.Fprintf(out, "Backend:     %s, %d days retention\n", r.Backend.Type, r.Backend.RetentionDays)
	}
	if r.Origin != nil {
		fmt.Fprintf(out, "Origin:      dashboard %s panel %s\n", r.Origin.DashboardID, r.Origin.PanelID)
	}
	fmt.Fprintf(out, "Updated:     %s\n", formatTime(&r.UpdatedAt))
}

func printEstimate(out io.Writer, est *client.EstimateResponse) {
	c := est.CostEstimate
	fmt.Fprintf(out, "Docs per day:        %d\n", c.DocsPerDay)
	fmt.Fprintf(out, "Estimated series:    %d\n", c.EstimatedSeriesCount)
	fmt.Fprintf(out, "Metric points/day:   %d\n", c.MetricPointsPerDay)
	fmt.Fprintf(out, "Log storage:         %.2f GB (%d days)\n", c.LogStorageGB, c.LogRetentionDays)
	fmt.Fprintf(out, "Metric storage:      %.2f GB (%d days)\n", c.MetricStorageGB, c.MetricRetentionDays)
	fmt.Fprintf(out, "Savings:             %.2f GB (%.1f%%)\n", c.SavingsGB, c.SavingsPct)
	fmt.Fprintf(out, "Query speedup:       %.0fx\n\n", c.QuerySpeedupX)

	printGuardrails(out, est.Guardrails)
}

func printGuardrails(out io.Writer, results []client.GuardrailResult) {
	t := NewTable(out, "CHECK", "RESULT", "EXPLANATION")
	for _, g := range results {
		result := "passed"
		if !g.Passed {
			result = "failed"
		}
		t.AddRow(g.Name, formatStatus(result), truncate(g.Explanation, 70))
	}
	t.Render()

	for _, g := range results {
		if !g.Passed && g.SuggestedFix != "" {
			fmt.Fprintf(out, "\nFix for %s: %s\n", g.Name, g.SuggestedFix)
		}
	}
}

// printGuardrailDetails renders the estimate carried by a 422 error
func printGuardrailDetails(out io.Writer, details interface{}) {
	data, err := yaml.Marshal(details)
	if err != nil {
		return
	}
	var est client.EstimateResponse
	if err := yaml.Unmarshal(data, &est); err != nil || len(est.Guardrails) == 0 {
		fmt.Fprintf(out, "%v\n", details)
		return
	}
	printGuardrails(out, est.Guardrails)
}
