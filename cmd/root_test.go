package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/actionreg/internal/testutil"
)

// resetCommands restores every flag to its default so commands can run
// repeatedly in one process.
func resetCommands(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetCommands(sub)
	}
}

// writeConfig writes a config file using a fresh SQLite database and returns
// its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  driver: sqlite\n  path: " + filepath.Join(dir, "actions.db") + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetCommands(rootCmd)
	cfgFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDocument(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

type listedAction struct {
	Name      string   `json:"name"`
	System    bool     `json:"is_system"`
	Base      string   `json:"base"`
	Input     []string `json:"input"`
	TrustID   *string  `json:"trust_id"`
	ProjectID *string  `json:"project_id"`
}

func decodeActions(t *testing.T, out string) []listedAction {
	t.Helper()
	var actions []listedAction
	require.NoError(t, json.Unmarshal([]byte(out), &actions), out)
	return actions
}

func TestCreateGetList(t *testing.T) {
	cfgPath := writeConfig(t, "")
	doc := writeDocument(t, testutil.EchoDocument(t, "my.one", "my.two"))

	out, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.NoError(t, err)
	created := decodeActions(t, out)
	require.Len(t, created, 2)
	require.Equal(t, "my.one", created[0].Name)
	require.Nil(t, created[0].TrustID)

	out, err = execute(t, "", "-c", cfgPath, "actions:get", "my.two")
	require.NoError(t, err)
	var got listedAction
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "std.echo", got.Base)
	require.Equal(t, []string{"text"}, got.Input)

	out, err = execute(t, "", "-c", cfgPath, "actions:list", "--custom")
	require.NoError(t, err)
	require.Len(t, decodeActions(t, out), 2)

	out, err = execute(t, "", "-c", cfgPath, "actions:list", "--system")
	require.NoError(t, err)
	system := decodeActions(t, out)
	require.NotEmpty(t, system)
	for _, a := range system {
		require.True(t, a.System)
	}

	_, err = execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.ErrorContains(t, err, "duplicate action name: my.one")
}

func TestCreateFromStdin(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out, err := execute(t, testutil.EchoDocument(t, "stdin.echo"), "-c", cfgPath, "actions:create", "-f", "-", "-o", "table")
	require.NoError(t, err)
	require.Contains(t, out, "stdin.echo")
	require.True(t, strings.HasPrefix(out, "NAME"))
}

func TestUpdateRefusesSystemAction(t *testing.T) {
	cfgPath := writeConfig(t, "")
	doc := writeDocument(t, testutil.EchoDocument(t, "my.one", "std.echo"))

	_, err := execute(t, "", "-c", cfgPath, "actions:update", "-f", doc)
	require.ErrorContains(t, err, "attempt to modify a system action: std.echo")

	_, err = execute(t, "", "-c", cfgPath, "actions:get", "my.one")
	require.ErrorContains(t, err, "action not found: my.one")
}

func TestResolveAndDelete(t *testing.T) {
	cfgPath := writeConfig(t, "")
	doc := writeDocument(t, testutil.NewDefinition(t).
		WithAction("a.base").
		WithAction("b.outer", testutil.WithBase("a.base")).
		Build())

	_, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.NoError(t, err)

	out, err := execute(t, "", "-c", cfgPath, "actions:resolve", "b.outer", "-o", "table")
	require.NoError(t, err)
	require.Equal(t, "b.outer -> a.base -> std.echo\n", out)

	_, err = execute(t, "", "-c", cfgPath, "actions:delete", "b.outer")
	require.NoError(t, err)
	_, err = execute(t, "", "-c", cfgPath, "actions:delete", "std.echo")
	require.ErrorContains(t, err, "system action")
}

func TestDiff(t *testing.T) {
	cfgPath := writeConfig(t, "")
	doc := writeDocument(t, testutil.EchoDocument(t, "my.one"))
	_, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.NoError(t, err)

	changed := writeDocument(t, testutil.NewDefinition(t).
		WithAction("my.one", testutil.WithInput("text", "lang")).
		WithAction("my.new").
		WithAction("std.noop").
		Build())

	out, err := execute(t, "", "-c", cfgPath, "actions:diff", "-f", changed)
	require.NoError(t, err)
	var entries []diffEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries), out)
	require.Equal(t, []string{"my.one", "my.new", "std.noop"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
	require.Equal(t, diffChanged, entries[0].Status)
	require.Equal(t, diffNew, entries[1].Status)
	require.Equal(t, diffSystem, entries[2].Status)

	out, err = execute(t, "", "-c", cfgPath, "actions:diff", "-f", doc, "-o", "table")
	require.NoError(t, err)
	require.Equal(t, "my.one: unchanged (+0 -0)\n", out)
}

func TestDiffComparesEachActionOnItsOwn(t *testing.T) {
	cfgPath := writeConfig(t, "")
	doc := writeDocument(t, testutil.EchoDocument(t, "my.one", "my.two"))
	_, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.NoError(t, err)

	changed := writeDocument(t, testutil.NewDefinition(t).
		WithAction("my.one").
		WithAction("my.two", testutil.WithDescription("Second")).
		Build())

	out, err := execute(t, "", "-c", cfgPath, "actions:diff", "-f", changed)
	require.NoError(t, err)
	var entries []diffEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries), out)
	require.Len(t, entries, 2)
	require.Equal(t, diffEntry{Name: "my.one", Status: diffUnchanged}, entries[0])
	require.Equal(t, "my.two", entries[1].Name)
	require.Equal(t, diffChanged, entries[1].Status)
	require.Equal(t, 1, entries[1].Added)
	require.Zero(t, entries[1].Removed)
}

func TestAuthEnabledAttachesProject(t *testing.T) {
	cfgPath := writeConfig(t, "flags:\n  auth-enable: true\ntrust:\n  signing_key: "+strings.Repeat("s", 32)+"\n")
	doc := writeDocument(t, testutil.EchoDocument(t, "my.secure"))

	_, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc, "--user", "u-1")
	require.ErrorContains(t, err, "no project id")

	out, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc, "--user", "u-1", "--project", "p-9")
	require.NoError(t, err)
	created := decodeActions(t, out)
	require.NotNil(t, created[0].TrustID)
	require.Equal(t, "p-9", *created[0].ProjectID)
}

func TestAuthEnabledRequiresSigningKey(t *testing.T) {
	cfgPath := writeConfig(t, "flags:\n  auth-enable: true\n")

	_, err := execute(t, "", "-c", cfgPath, "actions:list")
	require.ErrorContains(t, err, "trust.signing_key")
}

func TestInvalidStorageDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0o600))

	_, err := execute(t, "", "-c", path, "actions:list")
	require.ErrorContains(t, err, "storage.driver")
}

func TestFlagsSet(t *testing.T) {
	cfgPath := writeConfig(t, "# keep me\n")

	_, err := execute(t, "", "-c", cfgPath, "flags:set", "seed-on-start", "false")
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "seed-on-start: false")
	require.Contains(t, string(data), "# keep me")

	// Without seeding the store holds no system actions.
	out, err := execute(t, "", "-c", cfgPath, "actions:list", "--system")
	require.NoError(t, err)
	require.Empty(t, decodeActions(t, out))

	_, err = execute(t, "", "-c", cfgPath, "flags:set", "no-such-flag", "true")
	require.ErrorContains(t, err, "unknown flag")
	_, err = execute(t, "", "-c", cfgPath, "flags:set", "auth-enable", "maybe")
	require.ErrorContains(t, err, "true or false")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "", "-c", path, "config:init")
	require.NoError(t, err)
	require.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "auth-enable: false")
}

func TestTracingFileExporter(t *testing.T) {
	tracesPath := filepath.Join(t.TempDir(), "traces.jsonl")
	cfgPath := writeConfig(t, "tracing:\n  enabled: true\n  exporter: file\n  file_path: "+tracesPath+"\n")
	doc := writeDocument(t, testutil.EchoDocument(t, "traced.echo"))

	_, err := execute(t, "", "-c", cfgPath, "actions:create", "-f", doc)
	require.NoError(t, err)

	data, err := os.ReadFile(tracesPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "actions.register")
	require.Contains(t, string(data), "actions.seed")
}
