package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trialscope/internal/extraction"
	"trialscope/internal/registry/ctgov"
	"trialscope/internal/services/llm"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var templatePath string
	var model string
	var maxTrials int
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "extract QUERY",
		Short: "Fetch trials and extract structured data from each with the LLM",
		Long: "Fetch trials matching QUERY, render a prompt per trial from --template (or the\n" +
			"built-in prompt), and print one JSON outcome per trial. Templates can use\n" +
			"{{.NCTID}}, {{.Title}}, {{.Status}}, {{.Conditions}} and {{.Record}}.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.HasAPIKey() {
				return fmt.Errorf("llm.api_key is not set; export OPENROUTER_API_KEY or add it to the config file")
			}

			prompt := extraction.DefaultPrompt()
			if strings.TrimSpace(templatePath) != "" {
				prompt, err = extraction.LoadPrompt(templatePath)
				if err != nil {
					return err
				}
			}
			fetcher, err := ctx.registryClient()
			if err != nil {
				return err
			}
			requester, err := ctx.llmClient()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			retries := cfg.LLM.MaxRetries
			if cmd.Flags().Changed("max-retries") {
				retries = maxRetries
			}

			runner := extraction.NewRunner(fetcher, requester,
				extraction.WithPrompt(prompt),
				extraction.WithModel(model),
				extraction.WithMaxRetries(retries),
				extraction.WithLogger(logger),
			)
			outcomes, err := runner.Run(ctx.runContext(cmd), ctgov.Query{Text: strings.Join(args, " "), MaxTrials: maxTrials})
			if len(outcomes) > 0 {
				if writeErr := writeJSON(cmd, outcomes); writeErr != nil && err == nil {
					err = writeErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Prompt template file (text/template)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (defaults to llm.model)")
	cmd.Flags().IntVarP(&maxTrials, "max-trials", "n", ctgov.DefaultMaxTrials, "Maximum number of trials to fetch")
	cmd.Flags().IntVar(&maxRetries, "max-retries", llm.DefaultMaxRetries, "Retries after the first attempt per trial (llm.max_retries applies unless this flag is set)")
	return cmd
}
