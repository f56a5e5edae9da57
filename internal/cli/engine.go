package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Inspect indices in the analytics engine",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "indices",
		Short: "List indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			indices, err := apiClient.Engine().ListIndices(ctx)
			if err != nil {
				return fmt.Errorf("failed to list indices: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, indices)
			}
			t := NewTable(out, "INDEX", "DOCS", "SIZE")
			for _, idx := range indices {
				t.AddRow(idx.Name, strconv.FormatInt(idx.DocCount, 10), idx.Size)
			}
			t.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mapping <index>",
		Short: "Show the mapped fields of an index or pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			m, err := apiClient.Engine().GetMapping(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get mapping: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, m)
			}
			t := NewTable(out, "FIELD", "TYPE", "AGGREGATABLE")
			for _, f := range m.Fields {
				t.AddRow(f.Name, f.Type, strconv.FormatBool(f.Aggregatable))
			}
			t.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats <index>",
		Short: "Show document count and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			st, err := apiClient.Engine().GetStats(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, st)
			}
			fmt.Fprintf(out, "Index:      %s\n", st.Index)
			fmt.Fprintf(out, "Documents:  %d\n", st.DocCount)
			fmt.Fprintf(out, "Store size: %s\n", st.StoreSize)
			fmt.Fprintf(out, "Queries:    %d (%d ms total)\n", st.QueryTotal, st.QueryTimeMs)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cardinality <index> <field>",
		Short: "Approximate the distinct values of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			fc, err := apiClient.Engine().GetCardinality(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to get cardinality: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, fc)
			}
			fmt.Fprintf(out, "%s in %s: ~%d distinct values\n", fc.Field, fc.Index, fc.Cardinality)
			return nil
		},
	})

	return cmd
}
