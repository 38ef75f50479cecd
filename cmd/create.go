package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
)

func newCreateCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <名稱> <檔案>...",
		Short: "從文件建立新的知識庫",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			a, cleanup, err := setupApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			name, files := args[0], args[1:]
			fmt.Printf("建立知識庫 %q（%d 個檔案）...\n", name, len(files))

			record, err := a.Registry.Create(cmd.Context(), name, description, files)
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("完成：%d 個檔案、%d 個段落已寫入。\n", record.FileCount, record.DocumentCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "知識庫描述")
	return cmd
}
