package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
	"github.com/liuzhen0/recall/internal/quiz"
)

func newQuizCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "quiz <名稱>",
		Short: "根據知識庫內容出題並評分",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			a, cleanup, err := setupApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			if _, err := a.Registry.Get(cmd.Context(), name); err != nil {
				return renderError(err)
			}

			if count <= 0 {
				count = cfg.QuestionCount
			}
			fmt.Printf("正在為 %q 出 %d 題...\n\n", name, count)
			set, err := a.Quiz.Generate(cmd.Context(), name, count)
			if err != nil {
				return renderError(err)
			}
			if set.Provenance == quiz.ProvenanceHeuristic {
				fmt.Println("（模型回覆格式異常，題目由原文粗略擷取。）")
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			var total float64
			answered := 0
			for i, q := range set.Questions {
				fmt.Printf("第 %d 題：%s\n> ", i+1, q.Question)
				answer, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				answer = strings.TrimSpace(answer)

				ev, err := a.Quiz.Evaluate(cmd.Context(), name, q.Question, answer)
				if err != nil {
					return renderError(err)
				}
				fmt.Printf("分數：%.0f / 100\n%s\n\n", ev.Score, ev.Feedback)

				if _, err := a.History.Record(cmd.Context(), name, q.Question, answer, ev.Score, ev.Feedback); err != nil {
					logger.Warn("failed to record attempt", "error", err)
				}
				total += ev.Score
				answered++
			}

			if answered > 0 {
				fmt.Printf("本輪平均：%.1f / 100（共 %d 題）\n", total/float64(answered), answered)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "題目數量（預設取自設定）")
	return cmd
}
