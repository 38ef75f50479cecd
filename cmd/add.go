package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/config"
)

func newAddCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "add <名稱> <檔案>...",
		Short: "將文件加入既有的知識庫",
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
			added, err := a.Registry.AddDocuments(cmd.Context(), name, files)
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("已加入 %d 個段落到 %q。\n", added, name)
			return nil
		},
	}
}
