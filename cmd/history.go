package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
	"github.com/liuzhen0/recall/internal/history"
)

func newHistoryCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		kbName   string
		minScore float64
		sortBy   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看練習紀錄",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setupApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			order := history.SortByRecency
			if sortBy == "score" {
				order = history.SortByScore
			}
			attempts, err := a.History.List(cmd.Context(), history.Query{
				KBName:   kbName,
				MinScore: minScore,
				Sort:     order,
				Limit:    limit,
			})
			if err != nil {
				return renderError(err)
			}
			if len(attempts) == 0 {
				fmt.Println("沒有符合條件的練習紀錄。")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "時間\t知識庫\t分數\t問題")
			for _, at := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\n",
					at.CreatedAt.Local().Format("2006-01-02 15:04"),
					at.KBName, at.Score, truncate(at.Question, 40))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if kbName != "" {
				stats, err := a.History.Summarize(cmd.Context(), kbName)
				if err != nil {
					return renderError(err)
				}
				fmt.Printf("\n共 %d 次作答，平均 %.1f 分，最高 %.0f 分。\n",
					stats.Count, stats.AverageScore, stats.BestScore)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kbName, "kb", "k", "", "僅顯示指定知識庫")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "只顯示高於此分數的紀錄")
	cmd.Flags().StringVar(&sortBy, "sort", "recency", "排序方式：recency 或 score")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "最多顯示的筆數")
	return cmd
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
