package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trialscope/internal/jsonextract"
	"trialscope/internal/services/llm"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var model string
	var maxRetries int
	var promptFile string

	cmd := &cobra.Command{
		Use:   "ask [PROMPT]",
		Short: "Send a prompt to the LLM and print the JSON it returns",
		Long: "Send PROMPT (or the contents of --file, or stdin when PROMPT is \"-\") as a single\n" +
			"user message. The JSON object found in the reply is printed; when the reply has\n" +
			"none, the raw reply is reported on stderr and the command still succeeds.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd, args, promptFile)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.llmClient()
			if err != nil {
				return err
			}
			req := llm.NewRequest(model, prompt)
			req.MaxRetries = cfg.LLM.MaxRetries
			if cmd.Flags().Changed("max-retries") {
				req.MaxRetries = maxRetries
			}

			extraction, err := client.Request(ctx.runContext(cmd), req)
			if err != nil {
				return err
			}
			if !extraction.Found {
				fmt.Fprintf(cmd.ErrOrStderr(), "No JSON found in model reply: %s\n", jsonextract.Snippet(extraction.Content))
				return nil
			}
			return writeJSON(cmd, extraction.Value)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (defaults to llm.model)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", llm.DefaultMaxRetries, "Retries after the first attempt (llm.max_retries applies unless this flag is set)")
	cmd.Flags().StringVarP(&promptFile, "file", "f", "", "Read the prompt from a file")
	return cmd
}

func readPrompt(cmd *cobra.Command, args []string, promptFile string) (string, error) {
	var prompt string
	switch {
	case promptFile != "" && len(args) > 0:
		return "", fmt.Errorf("pass either PROMPT or --file, not both")
	case promptFile != "":
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(data)
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(data)
	case len(args) == 1:
		prompt = args[0]
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}
