package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/herobot/internal/bot"
	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/chat/chattest"
	"github.com/Iron-Ham/herobot/internal/config"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "herobot", rootCmd.Use)

	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range []string{"run", "status", "config"} {
		assert.True(t, cmdMap[name], "missing subcommand %q", name)
	}
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.txt"), []byte("green\nlog"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	out, err := executeCommand(rootCmd, "status", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Watching: "+dir)
	assert.Contains(t, out, "build.txt: green (")
	assert.NotContains(t, out, "nested")
}

func TestStatusCommand_Empty(t *testing.T) {
	out, err := executeCommand(rootCmd, "status", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No status files")
}

func TestStatusCommand_MissingDir(t *testing.T) {
	_, err := executeCommand(rootCmd, "status", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestConfigShowRedactsToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "very-secret")
	t.Setenv("WATCH_DIR", t.TempDir())

	out, err := executeCommand(rootCmd, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "interval: 10s")
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := executeCommand(rootCmd, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Search paths:")
	assert.Contains(t, out, config.ConfigFile())
}

func TestConfigInit(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := executeCommand(rootCmd, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.ConfigFile())

	data, err := os.ReadFile(config.ConfigFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "heartbeat:")

	_, err = executeCommand(rootCmd, "config", "init")
	assert.Error(t, err, "init must not overwrite an existing file")
}

func TestServe_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha\n"), 0o644))

	cfg := config.Default()
	cfg.Watch.Dir = dir
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Heartbeat.Interval = time.Hour

	ep := chattest.New()
	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg, ep, logging.NopLogger()) }()

	waitSent := func(match func(string) bool) {
		t.Helper()
		require.Eventually(t, func() bool {
			for _, s := range ep.Sent() {
				if match(s) {
					return true
				}
			}
			return false
		}, 5*time.Second, 10*time.Millisecond)
	}

	waitSent(func(s string) bool { return s == cfg.Heartbeat.OnlineText })
	assert.True(t, strings.HasPrefix(ep.Sent()[0], "a.txt: alpha at "), ep.Sent()[0])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("done\n"), 0o644))
	waitSent(func(s string) bool { return s == "b.txt: done" })

	ep.Push(chat.Inbound{ID: 1, Text: "/stop"})
	waitSent(func(s string) bool { return s == bot.IgnoreStopText })
	ep.Push(chat.Inbound{ID: 2, Text: "/stop"})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after the second /stop")
	}
	sent := ep.Sent()
	assert.Equal(t, bot.StoppingText, sent[len(sent)-1])
}

func TestReadConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	t.Run("no file in search paths", func(t *testing.T) {
		assert.NoError(t, readConfig(viper.New(), ""))
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "herobot.yaml")
		require.NoError(t, os.WriteFile(path, []byte("heartbeat:\n  interval: 30s\n"), 0o600))

		v := viper.New()
		require.NoError(t, readConfig(v, path))
		assert.Equal(t, "30s", v.GetString("heartbeat.interval"))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "herobot.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bot: [unclosed\n"), 0o600))

		err := readConfig(viper.New(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed file in search path", func(t *testing.T) {
		dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "herobot")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("bot: [unclosed\n"), 0o600))
		t.Cleanup(func() { _ = os.RemoveAll(dir) })

		assert.Error(t, readConfig(viper.New(), ""))
	})

	t.Run("missing explicit file", func(t *testing.T) {
		err := readConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestRunCommand_MalformedConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herobot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot: [unclosed\n"), 0o600))

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("RID", "42")
	t.Setenv("WATCH_DIR", t.TempDir())
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("config", "")
		viper.Reset()
		_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
		configErr = nil
	})

	_, err := executeCommand(rootCmd, "--config", path, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
