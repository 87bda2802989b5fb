package minirag

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/mwiater/minirag/internal/logging"
)

func resetFlag(cmdFlag string) {
	flag := rootCmd.PersistentFlags().Lookup(cmdFlag)
	if flag == nil {
		return
	}
	_ = flag.Value.Set(flag.DefValue)
	flag.Changed = false
}

func resetRootFlags() {
	for _, name := range []string{"debug", "logFile", "reranker"} {
		resetFlag(name)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// useConfig points the root command at path for the duration of the test.
func useConfig(t *testing.T, path string) {
	t.Helper()
	prevCfgFile := cfgFile
	cfgFile = path
	initConfig()
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		viper.SetConfigFile(prevCfgFile)
	})
	t.Cleanup(func() { _ = logging.Close() })
	resetRootFlags()
}

// tempConfigJSON renders a config that keeps every artifact under root.
func tempConfigJSON(t *testing.T, root string, extra map[string]any) string {
	t.Helper()
	cfg := map[string]any{
		"corpusPath": filepath.Join(root, "corpus"),
		"dataDir":    filepath.Join(root, "data"),
		"traceDir":   filepath.Join(root, "traces"),
		"logFile":    filepath.Join(root, "minirag.log"),
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	return string(data)
}

func TestPersistentPreRunEUsesFlagValues(t *testing.T) {
	root := t.TempDir()
	configPath := writeTempConfig(t, tempConfigJSON(t, root, nil))
	useConfig(t, configPath)

	logPath := filepath.Join(root, "flag.log")
	_ = rootCmd.PersistentFlags().Set("debug", "true")
	_ = rootCmd.PersistentFlags().Set("reranker", "cosine")
	_ = rootCmd.PersistentFlags().Set("logFile", logPath)
	t.Cleanup(resetRootFlags)

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}

	if currentConfig == nil || currentConfig.ConfigPath != configPath {
		t.Fatalf("expected config loaded with path %s", configPath)
	}
	if !currentConfig.Debug || currentConfig.Reranker != "cosine" {
		t.Fatalf("expected flag values to flow into config: %+v", currentConfig)
	}
	if currentConfig.LogFile != logPath {
		t.Fatalf("expected logFile %s, got %s", logPath, currentConfig.LogFile)
	}
	if currentConfig.CorpusPath != filepath.Join(root, "corpus") {
		t.Fatalf("expected corpusPath from file, got %s", currentConfig.CorpusPath)
	}
}

func TestPersistentPreRunEEnvOverride(t *testing.T) {
	root := t.TempDir()
	useConfig(t, writeTempConfig(t, tempConfigJSON(t, root, nil)))
	t.Setenv("MINIRAG_TOPK", "9")

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}
	if currentConfig.TopK != 9 {
		t.Fatalf("expected topK from environment, got %d", currentConfig.TopK)
	}
}

func TestPersistentPreRunEInvalidReranker(t *testing.T) {
	root := t.TempDir()
	useConfig(t, writeTempConfig(t, tempConfigJSON(t, root, nil)))

	_ = rootCmd.PersistentFlags().Set("reranker", "bm25")
	t.Cleanup(resetRootFlags)

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err == nil {
		t.Fatalf("expected error for unknown reranker")
	}
}

func TestShowConfigCommandOutput(t *testing.T) {
	root := t.TempDir()
	configPath := writeTempConfig(t, tempConfigJSON(t, root, nil))
	useConfig(t, configPath)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--debug", "show", "config"})
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	t.Cleanup(resetRootFlags)
	_, err := rootCmd.ExecuteC()
	if err != nil {
		t.Fatalf("ExecuteC error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Config file: "+configPath) {
		t.Fatalf("expected config file line, got %q", out)
	}
	if !strings.Contains(out, "Debug:             true") {
		t.Fatalf("expected debug flag in output, got %q", out)
	}
	if !strings.Contains(out, "Reranker:          simple") {
		t.Fatalf("expected default reranker, got %q", out)
	}
}
