package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive Q&A session",
	Long: `Starts a multi-turn conversation against the ingested corpus.
Follow-up questions are answered in the context of the conversation so
far. Type "exit" or press Ctrl-D to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := initApp(); err != nil {
		return err
	}
	ctx := cmd.Context()
	sessionID := uuid.NewString()

	cmd.Println("BenefitsFlow chat. Ask about CalFresh, Medi-Cal, unemployment and more.")
	cmd.Println(`Type "exit" to quit.`)
	cmd.Println()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		answer, err := assistant.AnswerTurn(ctx, sessionID, question)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				cmd.Println("Please ask a question.")
				continue
			}
			return fmt.Errorf("turn failed: %w", err)
		}

		cmd.Println()
		printAnswer(cmd, answer)
		cmd.Println()
	}
}
