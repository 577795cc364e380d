// Package config resolves run settings from flags, environment variables
// and an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/frozenpine/pktextract/extract"
	"github.com/frozenpine/pktextract/internal/log"
)

const EnvPrefix = "PKTEXTRACT"

const (
	KeyConfig        = "config"
	KeyUnderflow     = "underflow"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyLogFile       = "log-file"
	KeyLogMaxSize    = "log-max-size"
	KeyLogMaxBackups = "log-max-backups"
	KeyLogMaxAge     = "log-max-age"
	KeyLogCompress   = "log-compress"
)

type Config struct {
	Underflow extract.UnderflowPolicy
	Log       log.Config
}

// RegisterFlags adds every setting to flags with its default value.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP(KeyConfig, "c", "", "config file path (yaml, toml or json)")
	flags.String(KeyUnderflow, "error",
		"policy when total length is smaller than both headers: error or clamp")
	flags.String(KeyLogLevel, "info", "log level: trace, debug, info, warn, error")
	flags.String(KeyLogFormat, "text", "log format: text or json")
	flags.String(KeyLogFile, "", "also write logs to this file, rotated")
	flags.Int(KeyLogMaxSize, 100, "log file size in megabytes before rotation")
	flags.Int(KeyLogMaxBackups, 3, "rotated log files to keep")
	flags.Int(KeyLogMaxAge, 0, "days to keep rotated log files, 0 keeps them all")
	flags.Bool(KeyLogCompress, false, "gzip rotated log files")
}

// New creates a viper instance bound to flags and PKTEXTRACT_* variables.
func New(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	return v, nil
}

func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	policy, err := extract.ParseUnderflowPolicy(v.GetString(KeyUnderflow))
	if err != nil {
		return nil, err
	}

	return &Config{
		Underflow: policy,
		Log: log.Config{
			Level:      v.GetString(KeyLogLevel),
			Format:     v.GetString(KeyLogFormat),
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSize),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAge),
			Compress:   v.GetBool(KeyLogCompress),
		},
	}, nil
}
