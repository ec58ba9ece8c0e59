package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/docxref/internal/llm"
	"github.com/cognicore/docxref/pkg/docxref/intent"
	"github.com/cognicore/docxref/pkg/docxref/report"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		in    inputFlags
		model llmFlags
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Analyze once, then answer questions about the files interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			analyzeCtx, cancel := context.WithTimeout(ctx, in.timeout)
			defer cancel()

			s, err := openSession(analyzeCtx, &in, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.engine.Analyze(analyzeCtx, s.request)
			if err != nil {
				return err
			}
			rep := out.Format(s.reportOptions())
			client := model.client()
			hasDocs := len(s.request.Documents) > 0

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Loaded %d files. Type a question (Ctrl+D to exit).\n", len(rep.Files))

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(w, "> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if question == "report" {
					_ = rep.Render(w)
					continue
				}

				cls := intent.Classify(question, hasDocs)
				reply, err := chatTurn(ctx, client, cls, question, &rep)
				if err != nil {
					a.logger.Warn("chat turn failed", zap.String("intent", cls.String()), zap.Error(err))
					fmt.Fprintf(w, "Error: %v\n", err)
					continue
				}
				fmt.Fprintln(w, reply)
			}
			fmt.Fprintln(w)
			return scanner.Err()
		},
	}

	in.register(cmd)
	model.register(cmd)
	return cmd
}

// chatTurn answers one line. Without a model, report-backed questions get
// the insights section instead of an LLM answer.
func chatTurn(ctx context.Context, c *llm.Client, cls intent.Intent, question string, rep *report.Report) (string, error) {
	if c == nil && cls.NeedsReport() {
		return strings.Join(rep.Insights, "\n"), nil
	}
	return answer(ctx, c, cls, question, rep)
}
