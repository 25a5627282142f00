package store

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config locates the data directory holding the entry database and the
// saved-view records.
type Config interface {
	BasePath() string
	DBPath() string
	ViewsPath() string
}

// LoadConfig reads the .jot config file (or JOT_* environment) and resolves
// the data directory, creating it if needed.
func LoadConfig() (Config, error) {
	viper.SetDefault("path", "~/.jot")
	viper.SetConfigName(".jot") // .yaml is implicit
	viper.SetEnvPrefix("JOT")
	viper.AutomaticEnv()

	if override := os.Getenv("JOT_CONFIG_PATH"); override != "" {
		viper.AddConfigPath(override)
	}
	viper.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(home)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	path, err := homedir.Expand(viper.GetString("path"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &fileConfig{Path: path}, nil
}

type fileConfig struct {
	Path string `json:"path"`
}

func (f *fileConfig) BasePath() string {
	return f.Path
}

func (f *fileConfig) DBPath() string {
	return filepath.Join(f.Path, "jot.db")
}

func (f *fileConfig) ViewsPath() string {
	return filepath.Join(f.Path, "views")
}
