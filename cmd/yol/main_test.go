package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command once. Cobra keeps flag values between
// executions, so they are reset first.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func fileConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	legacy := filepath.Join(dir, "yol.state")
	cfg := filepath.Join(dir, "yol.yaml")
	content := "store:\n  driver: file\n  options:\n    path: " + filepath.Join(dir, "state") + "\n" +
		"runners:\n  Site:\n    legacy_state_file: " + legacy + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	return cfg, legacy
}

func TestStateCommands(t *testing.T) {
	cfg, _ := fileConfig(t)

	out, err := run(t, "state", "get", "Site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Site has never run: (initial)")

	out, err = run(t, "state", "set", "Site", "schema", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Site moved from (initial) to "schema"`)

	out, err = run(t, "state", "get", "Site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Site is at "schema"`)

	_, err = run(t, "state", "set", "Site", "content", "--expect", "other", "--config", cfg)
	require.Error(t, err)

	out, err = run(t, "state", "reset", "Site", "--expect", "schema", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Site moved from "schema" to (initial)`)
}

func TestLegacyImport(t *testing.T) {
	cfg, legacy := fileConfig(t)
	require.NoError(t, os.WriteFile(legacy, []byte("content\n"), 0o644))

	out, err := run(t, "legacy", "import", "Site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Imported "content" for Site`)

	out, err = run(t, "legacy", "import", "Site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Nothing to import; Site is at "content"`)
}

func TestLegacyImport_NoFile(t *testing.T) {
	cfg, _ := fileConfig(t)

	_, err := run(t, "legacy", "import", "Blog", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no legacy state file configured for "Blog"`)
}

func TestValidateConfig(t *testing.T) {
	cfg, _ := fileConfig(t)

	out, err := run(t, "validate-config", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK (store: file, runners: 1)")

	_, err = run(t, "validate-config", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "yol version ")
}

func TestRunAndGraph(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	cfg := filepath.Join(dir, "yol.yaml")
	content := "store:\n  driver: sqlite\n  options:\n    path: " + filepath.Join(dir, "yol.db") + "\n" + `
runners:
  site:
    steps:
      - to: schema
        command: sh
        args: ["-c", "exit 0"]
      - from: schema
        to: content
        command: sh
        args: ["-c", "exit 0"]
`
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))

	out, err := run(t, "run", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `site moved from (initial) to "content" (2 steps)`)

	out, err = run(t, "run", "site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `site is up to date at "content"`)

	_, err = run(t, "run", "blog", "--config", cfg)
	assert.ErrorContains(t, err, "runner not found")

	out, err = run(t, "graph", "site", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "s_schema --> s_content")
}
