package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/rulebot/history"
	"github.com/zephyrtronium/rulebot/internal/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RULEBOT_HISTORY_FILE", "")
	t.Setenv("RULEBOT_LOG_LEVEL", "")
	t.Setenv("RULEBOT_TYPING_DELAY", "")
	dir := t.TempDir()
	args = append([]string{"--config", filepath.Join(dir, "missing.yaml")}, args...)
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvalArgs(t *testing.T) {
	out, err := execute(t, "", "eval", "2+2", "2^3^2", "(2+3)*4", "7 % -3")
	require.NoError(t, err)
	assert.Equal(t, "4\n512\n20\n-2\n", out)
}

func TestEvalStdin(t *testing.T) {
	out, err := execute(t, "1/2\n\n  10 - 4  \n", "eval")
	require.NoError(t, err)
	assert.Equal(t, "0.5\n6\n", out)
}

func TestEvalFormatEcho(t *testing.T) {
	out, err := execute(t, "", "eval", "--fmt", "%.3f", "--echo", "1+2*3")
	require.NoError(t, err)
	assert.Equal(t, "([1] + [(2) * (3)]) : 7.000\n", out)
}

func TestEvalErrors(t *testing.T) {
	out, err := execute(t, "", "eval", "1/0", "2+", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 expressions failed")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2: division by zero", lines[0])
	assert.Contains(t, lines[1], "no expression")
	assert.Equal(t, "3", lines[2])
}

func TestEvalBadPrec(t *testing.T) {
	_, err := execute(t, "", "eval", "--prec", "0", "1")
	assert.Error(t, err)
	_, err = execute(t, "", "eval", "--prec", "52", "7 % 3")
	assert.Error(t, err)
	out, err := execute(t, "", "eval", "--prec", "53", "7 % 3")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestChat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	out, err := execute(t, "2+2\n/exit\n", "--history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Result: 4")
	assert.Contains(t, out, "Goodbye!")

	es, err := history.Load(path)
	require.NoError(t, err)
	require.Len(t, es, 4)
	assert.Equal(t, "2+2", es[0].Text)
	assert.Equal(t, es[0].Session, es[3].Session)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("RULEBOT_LOG_LEVEL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "rulebot.yaml")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "eval", "1"})
	require.NoError(t, os.WriteFile(path, []byte("calc:\n  prec: 0\n"), 0o644))
	assert.Error(t, cmd.Execute())
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "rulebot.yaml")
	out, err := execute(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "Wrote default config to "+path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	// The written file is usable as --config.
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "eval", "1+1"})
	var evalOut strings.Builder
	cmd.SetOut(&evalOut)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "2\n", evalOut.String())
}

func TestConfigInitExisting(t *testing.T) {
	t.Setenv("RULEBOT_HISTORY_FILE", "")
	t.Setenv("RULEBOT_LOG_LEVEL", "")
	t.Setenv("RULEBOT_TYPING_DELAY", "")
	path := filepath.Join(t.TempDir(), "rulebot.yaml")
	// An invalid file must not prevent replacing it.
	require.NoError(t, os.WriteFile(path, []byte("calc:\n  prec: 0\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	cmd.SetOut(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "calc:\n  prec: 0\n", string(data))

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", path, "config", "init", "--force"})
	cmd.SetOut(io.Discard)
	require.NoError(t, cmd.Execute())
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultConfig(), cfg)
}
