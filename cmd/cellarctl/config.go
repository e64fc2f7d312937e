package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "CELLAR"

	cfgKeyDataPath = "data_path"
	cfgKeyLogLevel = "log_level"

	defaultLogLevel = "warn"
)

// settings are the resolved cellarctl options.
type settings struct {
	DataPath string
	LogLevel string
}

// loadSettings merges, from lowest to highest precedence, defaults, the
// optional YAML file, CELLAR_* environment variables and flags.
func loadSettings(configFile string, flags *pflag.FlagSet) (*settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{cfgKeyDataPath: "data-path", cfgKeyLogLevel: "log-level"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	dataPath, err := expandDataPath(v.GetString(cfgKeyDataPath))
	if err != nil {
		return nil, err
	}
	return &settings{
		DataPath: dataPath,
		LogLevel: v.GetString(cfgKeyLogLevel),
	}, nil
}

// expandDataPath resolves ~ and relative paths. Empty means ~/MyCellar/data.
func expandDataPath(path string) (string, error) {
	if path == "" || path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		switch {
		case path == "":
			return filepath.Join(home, "MyCellar", "data"), nil
		case path == "~":
			return home, nil
		default:
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve data path: %w", err)
	}
	return abs, nil
}
