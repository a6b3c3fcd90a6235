package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/avelichko/manager-pulse/internal/pipeline"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available from the configured LLM provider",
	Long: `Queries the configured LLM provider for its available models and prints
them with their text-generation capability. The active model is chosen
with --llm-model; when it is exhausted mid-run, the client falls back to
another generation-capable model from this list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(3)
		}

		ctx := cmd.Context()

		provider, err := pipeline.NewProvider(ctx, cfg.LLM)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(2)
		}

		models, err := provider.ListModels(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not list models: %v\n", err)
			os.Exit(2)
		}
		if len(models) == 0 {
			fmt.Fprintln(os.Stdout, "No models found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tGENERATION\tACTIVE")
		for _, m := range models {
			generation := "-"
			if m.SupportsGeneration {
				generation = "yes"
			}
			active := ""
			if m.Name == cfg.LLM.Model {
				active = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, generation, active)
		}
		w.Flush()

		fmt.Fprintf(os.Stdout, "\n%d models listed (provider: %s).\n", len(models), provider.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
