package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/terms"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/query"
)

// newTermsCmd prints the highlight terms of a query, one per line.
func newTermsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "terms <query>",
		Short: "Print the highlight terms extracted from a search query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extracted := terms.Extract(strings.Join(args, " "))
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(extracted)
			}
			for _, term := range extracted {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), term); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output terms as a JSON array")
	return cmd
}

// newClassifyCmd parses a query and prints its search type and clauses.
func newClassifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "classify <query>",
		Short: "Parse a search query into its type, versions and ranges",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			search, err := query.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"type":            search.Type.String(),
					"query":           search.Query,
					"versions":        search.Versions,
					"sub_range":       search.SubRange,
					"main_range":      search.MainRange,
					"original_filter": search.OriginalFilter,
				})
			}
			fmt.Fprintf(out, "type:      %s\n", search.Type)
			fmt.Fprintf(out, "query:     %s\n", search.Query)
			fmt.Fprintf(out, "versions:  %s\n", strings.Join(search.Versions, ", "))
			if search.SubRange != "" {
				fmt.Fprintf(out, "sub range: %s\n", search.SubRange)
			}
			if search.MainRange != "" {
				fmt.Fprintf(out, "range:     %s\n", search.MainRange)
			}
			if len(search.OriginalFilter) > 0 {
				fmt.Fprintf(out, "filter:    %s\n", strings.Join(search.OriginalFilter, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the parsed query as JSON")
	return cmd
}
