package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
)

func newListCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出所有知識庫",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setupApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := a.Registry.List(cmd.Context())
			if err != nil {
				return renderError(err)
			}
			if len(records) == 0 {
				fmt.Println("目前沒有知識庫。用 recall create 建立一個。")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "名稱\t檔案\t段落\t建立時間\t描述")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
					r.Name, r.FileCount, r.DocumentCount,
					r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Description)
			}
			return w.Flush()
		},
	}
}
