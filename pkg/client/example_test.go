package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/logs2metrics/l2m/pkg/client"
)

// Example demonstrates basic usage of the client
func Example() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8000",
		Token:   "eyJhbGciOiJIUzI1NiIs...",
	})

	ctx := context.Background()

	list, err := c.Rules().List(ctx, &client.RuleListOptions{Status: client.StatusActive})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d active rules\n", list.TotalItems)
}

// ExampleRuleService_Create demonstrates creating a rule and reacting to a guardrail rejection
func ExampleRuleService_Create() {
	c := client.NewClient(client.Config{BaseURL: "http://localhost:8000"})

	r, err := c.Rules().Create(context.Background(), client.CreateRuleRequest{
		Name:    "checkout errors",
		Owner:   "payments",
		Source:  client.SourceConfig{IndexPattern: "logs-checkout-*"},
		GroupBy: client.GroupByConfig{TimeBucket: "1m", Dimensions: []string{"service", "status"}},
		Compute: client.ComputeConfig{Type: "count"},
		Status:  client.StatusActive,
	}, nil)
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.IsGuardrailFailure() {
		fmt.Printf("Rejected by guardrails: %v\n", apiErr.Details)
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Rule %d is %s\n", r.ID, r.Status)
}

// ExampleRuleService_Estimate demonstrates a dry-run cost estimate
func ExampleRuleService_Estimate() {
	c := client.NewClient(client.Config{BaseURL: "http://localhost:8000"})

	est, err := c.Rules().Estimate(context.Background(), client.CreateRuleRequest{
		Name:    "latency",
		Source:  client.SourceConfig{IndexPattern: "logs-api-*"},
		GroupBy: client.GroupByConfig{TimeBucket: "5m", Dimensions: []string{"route"}},
		Compute: client.ComputeConfig{Type: "distribution", Field: "duration_ms", Percentiles: []float64{50, 99}},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Savings: %.1f%% (%d series)\n", est.CostEstimate.SavingsPct, est.CostEstimate.EstimatedSeriesCount)
	for _, g := range est.Guardrails {
		if !g.Passed {
			fmt.Printf("  %s: %s\n", g.Name, g.SuggestedFix)
		}
	}
}

// ExampleEngineService_GetCardinality demonstrates checking a dimension before using it
func ExampleEngineService_GetCardinality() {
	c := client.NewClient(client.Config{BaseURL: "http://localhost:8000"})

	fc, err := c.Engine().GetCardinality(context.Background(), "logs-*", "user_id")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s has ~%d distinct values\n", fc.Field, fc.Cardinality)
}
