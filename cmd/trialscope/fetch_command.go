package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trialscope/internal/registry/ctgov"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var maxTrials int
	var jsonOutput bool
	var tsvOutput bool

	cmd := &cobra.Command{
		Use:   "fetch QUERY",
		Short: "Search the ClinicalTrials.gov registry",
		Long: "Fetch trials matching QUERY, paging through the registry until the cap is reached\n" +
			"or the registry runs out of results. Prints a summary table on a terminal and\n" +
			"the full records as JSON otherwise.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && tsvOutput {
				return fmt.Errorf("--json and --tsv are mutually exclusive")
			}
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}
			query := ctgov.Query{Text: strings.Join(args, " "), MaxTrials: maxTrials}
			results, err := client.Fetch(ctx.runContext(cmd), query)
			if err != nil {
				return err
			}

			switch {
			case tsvOutput:
				return writeTSV(cmd, results)
			case jsonOutput || !isTerminal(cmd.OutOrStdout()):
				return writeJSON(cmd, results)
			}
			renderSummaryTable(cmd, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxTrials, "max-trials", "n", ctgov.DefaultMaxTrials, "Maximum number of trials to fetch")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print full records as JSON")
	cmd.Flags().BoolVar(&tsvOutput, "tsv", false, "Print one row per trial with one column per top-level field")
	return cmd
}

func renderSummaryTable(cmd *cobra.Command, results ctgov.ResultSet) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No trials found")
		return
	}
	summaries := results.Summarize()
	rows := make([][]string, 0, len(summaries))
	for i, summary := range summaries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			summary.NCTID,
			summary.Status,
			summary.Title,
			strings.Join(summary.Conditions, ", "),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "NCT ID", "Status", "Title", "Conditions"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d trials\n", len(results))
}

// writeTSV prints the result set as a table of top-level fields. Nested
// values are JSON encoded; missing fields are empty.
func writeTSV(cmd *cobra.Command, results ctgov.ResultSet) error {
	out := cmd.OutOrStdout()
	columns := results.Columns()
	if len(columns) == 0 {
		return nil
	}
	fmt.Fprintln(out, strings.Join(columns, "\t"))
	for _, row := range results.Rows() {
		cells := make([]string, len(row))
		for i, value := range row {
			cell, err := tsvCell(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", columns[i], err)
			}
			cells[i] = cell
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	return nil
}

func tsvCell(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(v), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
