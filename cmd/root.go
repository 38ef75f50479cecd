// Package cmd implements the recall command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/liuzhen0/recall/internal/app"
	"github.com/liuzhen0/recall/internal/config"
	"github.com/liuzhen0/recall/internal/kb"
	"github.com/liuzhen0/recall/internal/log"
)

// NewRootCmd assembles the command tree (factory pattern).
func NewRootCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall - 把文件變成可以反覆練習的知識庫",
		Long: `Recall 將你的文件（PDF/TXT/MD/EPUB）建成知識庫，
並根據內容出題，讓你針對讀過的東西練習回想。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCreateCmd(cfg, logger),
		newAddCmd(cfg, logger),
		newListCmd(cfg, logger),
		newDeleteCmd(cfg, logger),
		newQuizCmd(cfg, logger),
		newHistoryCmd(cfg, logger),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute loads configuration and runs the root command.
func Execute() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	return NewRootCmd(cfg, logger).Execute()
}

// setupApp builds the dependency graph for one command invocation. The
// returned cleanup must be deferred.
func setupApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, func(), error) {
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
	return a, cleanup, nil
}

// renderError maps a failure to a user-facing message, switching on the
// error kind at this outermost boundary.
func renderError(err error) error {
	if err == nil {
		return nil
	}
	switch kb.KindOf(err) {
	case kb.KindValidation:
		return fmt.Errorf("輸入有誤：%w", err)
	case kb.KindFileProcessing:
		return fmt.Errorf("文件解析失敗：%w", err)
	case kb.KindVectorStore:
		return fmt.Errorf("向量儲存錯誤：%w", err)
	case kb.KindDatabase:
		return fmt.Errorf("資料庫錯誤：%w", err)
	case kb.KindNotFound:
		return fmt.Errorf("找不到知識庫：%w", err)
	default:
		return err
	}
}

// confirm prompts and reads a y/N answer from stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}
