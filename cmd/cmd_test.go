package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liuzhen0/recall/internal/config"
	"github.com/liuzhen0/recall/internal/kb"
	"github.com/liuzhen0/recall/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:           dir,
		DatabasePath:      filepath.Join(dir, "recall.db"),
		VectorDir:         filepath.Join(dir, "vectors"),
		ChunkSize:         config.DefaultChunkSize,
		ChunkOverlap:      config.DefaultChunkOverlap,
		MaxFileSize:       config.DefaultMaxFileSize,
		ParallelThreshold: config.DefaultParallelThreshold,
		ParseWorkers:      config.DefaultParseWorkers,
		QuestionCount:     5,
	}
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd(testConfig(t), log.NewNop())

	want := []string{"create", "add", "list", "delete", "quiz", "history", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q is not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd(testConfig(t), log.NewNop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out.String(), "Recall") {
		t.Errorf("version output = %q, want it to mention Recall", out.String())
	}
}

func TestListOnFreshStore(t *testing.T) {
	root := NewRootCmd(testConfig(t), log.NewNop())
	root.SetArgs([]string{"list"})
	if err := root.Execute(); err != nil {
		t.Fatalf("list error = %v", err)
	}
}

func TestCreateWithoutAPIKey(t *testing.T) {
	root := NewRootCmd(testConfig(t), log.NewNop())
	root.SetArgs([]string{"create", "kb1", "file.txt"})
	if err := root.Execute(); err == nil {
		t.Fatal("create without API key succeeded, want error")
	}
}

func TestRenderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "validation", err: kb.Validationf("bad name"), want: "輸入有誤"},
		{name: "not found", err: kb.NotFoundf("missing"), want: "找不到知識庫"},
		{name: "database", err: kb.Databasef("down"), want: "資料庫錯誤"},
		{name: "vector", err: kb.VectorStoref("down"), want: "向量儲存錯誤"},
		{name: "file processing", err: kb.FileProcessingf("corrupt"), want: "文件解析失敗"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderError(tt.err)
			if got == nil || !strings.Contains(got.Error(), tt.want) {
				t.Errorf("renderError() = %v, want prefix %q", got, tt.want)
			}
		})
	}
}
