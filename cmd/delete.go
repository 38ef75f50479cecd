package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
)

func newDeleteCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <名稱>",
		Short: "刪除知識庫及其練習紀錄",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !force && !confirm(fmt.Sprintf("確定要刪除知識庫 %q 嗎？", name)) {
				fmt.Println("已取消。")
				return nil
			}

			a, cleanup, err := setupApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			clean, err := a.Registry.Delete(cmd.Context(), name)
			if err != nil {
				return renderError(err)
			}
			if !clean {
				fmt.Printf("知識庫 %q 已刪除，但部分資料清理失敗，詳見日誌。\n", name)
				return nil
			}
			fmt.Printf("知識庫 %q 已刪除。\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "不再詢問，直接刪除")
	return cmd
}
