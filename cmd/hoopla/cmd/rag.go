package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/output"
	"github.com/Aman-CERP/hoopla/internal/rag"
)

func newRAGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Answer questions from retrieved movies with a language model",
		Long: `Retrieve movies with RRF hybrid search and hand them to a language model.

The model is configured in the llm section; its API key is read from the
environment variable named by llm.api_key_env.`,
	}

	cmd.AddCommand(newRAGModeCmd(rag.ModeAnswer, "answer <query>", "Answer a query from the top results"))
	cmd.AddCommand(newRAGModeCmd(rag.ModeSummarize, "summarize <query>", "Summarize the top results"))
	cmd.AddCommand(newRAGModeCmd(rag.ModeCitations, "citations <query>", "Answer with [n] citations to the results"))
	cmd.AddCommand(newRAGModeCmd(rag.ModeQuestion, "question <question>", "Answer a conversational question"))
	return cmd
}

func newRAGModeCmd(mode rag.Mode, use, short string) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), engineOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ans, err := rag.NewService(a.engine, a.llm).Run(cmd.Context(), mode, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(ans)
			}
			out.Answer(ans)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", rag.DefaultLimit, "Movies given to the model")
	addFormatFlag(cmd, &format)
	return cmd
}
