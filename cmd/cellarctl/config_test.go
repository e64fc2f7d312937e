package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cellarctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_path: "+filepath.Join(dir, "from-file")+"\nlog_level: debug\n"), 0o600))

	s, err := loadSettings(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from-file"), s.DataPath)
	assert.Equal(t, "debug", s.LogLevel)

	t.Setenv("CELLAR_DATA_PATH", filepath.Join(dir, "from-env"))
	s, err = loadSettings(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from-env"), s.DataPath)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-path", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--data-path", filepath.Join(dir, "from-flag")}))

	s, err = loadSettings(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from-flag"), s.DataPath)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadSettings_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := loadSettings("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "MyCellar", "data"), s.DataPath)
	assert.Equal(t, defaultLogLevel, s.LogLevel)
}

func TestExpandDataPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandDataPath("~/cellar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cellar"), got)

	got, err = expandDataPath("relative")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
