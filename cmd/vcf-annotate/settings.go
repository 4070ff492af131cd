package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/datasource/exac"
)

const (
	configName = ".vcf-annotate"
	envPrefix  = "VCF_ANNOTATE"
)

// Settings is the merged view of config file, environment and flags.
type Settings struct {
	Annotate struct {
		Workers       int           `mapstructure:"workers"`
		ChunkSize     int           `mapstructure:"chunk_size"`
		Timeout       time.Duration `mapstructure:"timeout"`
		Retries       int           `mapstructure:"retries"`
		RetryInterval time.Duration `mapstructure:"retry_interval"`
		OutputFormat  string        `mapstructure:"output_format"`
	} `mapstructure:"annotate"`

	Engine struct {
		Assembly       string   `mapstructure:"assembly"`
		Transcripts    string   `mapstructure:"transcripts"`
		Genome         string   `mapstructure:"genome"`
		CodingPrefixes []string `mapstructure:"coding_prefixes"`
	} `mapstructure:"engine"`

	Frequency struct {
		Source string `mapstructure:"source"`
		URL    string `mapstructure:"url"`
		DB     string `mapstructure:"db"`
	} `mapstructure:"frequency"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults() {
	viper.SetDefault("annotate.workers", 0)
	viper.SetDefault("annotate.chunk_size", 1)
	viper.SetDefault("annotate.timeout", 30*time.Second)
	viper.SetDefault("annotate.retries", 3)
	viper.SetDefault("annotate.retry_interval", 200*time.Millisecond)
	viper.SetDefault("annotate.output_format", "csv")
	viper.SetDefault("engine.coding_prefixes", annotate.DefaultCodingPrefixes)
	viper.SetDefault("frequency.source", "exac")
	viper.SetDefault("frequency.url", exac.DefaultBaseURL)
	viper.SetDefault("frequency.db", "")
	viper.SetDefault("log.level", "info")
}

// initConfig reads the config file, if any, and environment overrides.
func initConfig(cfgFile string, verbose bool) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if verbose {
		viper.Set("log.level", "debug")
	}
	return nil
}

// loadSettings decodes the current viper state. Durations accept "30s"
// style strings and lists accept comma-separated values, so both work from
// the environment as well as from YAML.
func loadSettings() (*Settings, error) {
	var s Settings
	err := viper.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

// dataDir is where downloaded and indexed reference data lives.
func dataDir(assembly string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".vcf-annotate", strings.ToLower(assembly)), nil
}

// configPath returns the file config set writes to.
func configPath() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}
