package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. IDRAC_HOST.
	EnvPrefix = "IDRAC"
	// GlobalConfigDir is the directory for the user config file.
	GlobalConfigDir = ".config/idrac-power"
	// GlobalConfigFile is the user config file name.
	GlobalConfigFile = "config.yaml"
)

// keys lists every setting viper resolves. Flags bind to the same name with
// dashes, e.g. verify_ssl <- --verify-ssl.
var keys = []string{
	"host", "username", "password", "port",
	"verify_ssl", "timeout",
	"jumphost", "jumphost_user", "jumphost_port", "ssh_key", "ssh_password", "no_tunnel",
	"monitor", "sample_interval",
	"servers_file", "max_workers",
	"format", "output", "quiet",
}

// envAliases are keys whose variable is not IDRAC_<KEY>.
var envAliases = map[string]string{
	"ssh_key":      "IDRAC_JUMPHOST_SSH_KEY",
	"ssh_password": "IDRAC_JUMPHOST_SSH_PASSWORD",
}

// Load resolves the configuration with precedence flags > IDRAC_*
// environment variables > config file > defaults. path is the --config
// value; when empty the user config file is used if it exists. flags may be
// nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't bind "+env, "")
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	found, err := Find(path)
	if err != nil {
		return nil, err
	}
	if found != "" {
		v.SetConfigFile(found)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file "+found,
				"Check the file exists and is valid YAML")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in your config file and IDRAC_* environment variables")
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	return cfg, nil
}

// Find locates the config file:
// 1. Explicit path (from --config), which must exist
// 2. ~/.config/idrac-power/config.yaml
//
// Returns an empty string when there is no config file.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", nil
	}
	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("host", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("port", d.Port)
	v.SetDefault("verify_ssl", d.VerifySSL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("jumphost", "")
	v.SetDefault("jumphost_user", "")
	v.SetDefault("jumphost_port", 0)
	v.SetDefault("ssh_key", "")
	v.SetDefault("ssh_password", "")
	v.SetDefault("no_tunnel", false)
	v.SetDefault("monitor", "")
	v.SetDefault("sample_interval", d.SampleInterval)
	v.SetDefault("servers_file", "")
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("format", d.Format)
	v.SetDefault("output", "")
	v.SetDefault("quiet", false)
}

// bindFlags binds each key to its flag if the flag set defines it. A set
// --no-verify-ssl overrides everything else.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range keys {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't bind flag --"+f.Name, "")
		}
	}

	if f := flags.Lookup("no-verify-ssl"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("verify_ssl", false)
	}
	return nil
}
