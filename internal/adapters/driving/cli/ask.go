package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question against the corpus",
	Long: `Retrieves relevant passages from the ingested corpus and generates
a grounded answer with citations. A single-turn question with no
conversation history.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	ctx := cmd.Context()
	question := args[0]

	evidence, err := retrieval.Retrieve(ctx, question, nil, chatTopK, chatBudget)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	answer, err := synthesis.Synthesize(ctx, question, nil, evidence)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printAnswer(cmd, answer)
	return nil
}

// printAnswer renders an answer with its citations.
func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answer.Text)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range answer.Citations {
			title := c.Title
			if title == "" {
				title = c.URI
			}
			cmd.Printf("  - %s (%s, version %d)\n", title, c.URI, c.Version)
		}
	}

	if len(answer.Programs) > 0 {
		cmd.Println()
		cmd.Printf("Programs: %v\n", answer.Programs)
	}
}
