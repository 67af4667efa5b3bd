// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/observability"
)

// execute runs a fresh command tree with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "bolt version "+Version)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bolt version "+Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Bolt drives Salesforce Lightning UI scenarios")
	assert.Contains(t, out, "run")
}

func TestInitializeConfig(t *testing.T) {
	t.Run("reads the config file and environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bolt.yaml")
		require.NoError(t, os.WriteFile(path, []byte("target:\n  url: https://file.example.com\n  app: Sales\n"), 0o644))
		t.Setenv("BOLT_TARGET_APP", "Billing")

		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(newRunCmd(), v))

		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "https://file.example.com", cfg.Target().URL)
		assert.Equal(t, "Billing", cfg.Target().App, "environment overrides the file")
	})

	t.Run("flags override", func(t *testing.T) {
		cfgFile = ""
		cmd := newRunCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--url", "https://flag.example.com", "--skip-technical-errors=false"}))

		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(cmd, v))

		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "https://flag.example.com", cfg.Target().URL)
		assert.False(t, cfg.Classification().SkipTechnicalErrors)
		assert.True(t, cfg.Browser().Headless, "unset flags keep the default")
	})

	t.Run("broken config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bolt.yaml")
		require.NoError(t, os.WriteFile(path, []byte("target: [unclosed"), 0o644))
		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		err := initializeConfig(newRunCmd(), viper.New())
		assert.ErrorContains(t, err, "error reading config file")
	})
}

func TestConfigFrom(t *testing.T) {
	_, err := configFrom(context.Background())
	assert.EqualError(t, err, "configuration not loaded")

	cfg := config.NewDefaultConfig()
	got, err := configFrom(context.WithValue(context.Background(), configKey, cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
