package config

import (
	"time"

	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/target"
)

// Defaults for settings that have one.
const (
	DefaultFormat         = "text"
	DefaultSampleInterval = "5m"
	DefaultMaxWorkers     = 5
)

// Config holds every setting that can come from a flag, an IDRAC_*
// environment variable or the config file.
type Config struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Port     int    `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`

	VerifySSL bool          `yaml:"verify_ssl" mapstructure:"verify_ssl"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// Jumphost settings. These are the run-wide defaults; a servers file
	// can override them per row.
	Jumphost     string `yaml:"jumphost" mapstructure:"jumphost"`
	JumphostUser string `yaml:"jumphost_user" mapstructure:"jumphost_user"`
	JumphostPort int    `yaml:"jumphost_port" mapstructure:"jumphost_port" validate:"omitempty,min=1,max=65535"`
	SSHKey       string `yaml:"ssh_key" mapstructure:"ssh_key"`
	SSHPassword  string `yaml:"ssh_password" mapstructure:"ssh_password"`
	NoTunnel     bool   `yaml:"no_tunnel" mapstructure:"no_tunnel"`

	// Monitor is the monitoring window, e.g. "24h". Empty means take a
	// single reading.
	Monitor        string `yaml:"monitor" mapstructure:"monitor"`
	SampleInterval string `yaml:"sample_interval" mapstructure:"sample_interval"`

	ServersFile string `yaml:"servers_file" mapstructure:"servers_file"`
	MaxWorkers  int    `yaml:"max_workers" mapstructure:"max_workers" validate:"min=1"`

	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json yaml"`
	Output string `yaml:"output" mapstructure:"output"`
	Quiet  bool   `yaml:"quiet" mapstructure:"quiet"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Port:           target.DefaultPort,
		VerifySSL:      true,
		Timeout:        redfish.DefaultTimeout,
		SampleInterval: DefaultSampleInterval,
		MaxWorkers:     DefaultMaxWorkers,
		Format:         DefaultFormat,
	}
}

// MultiTarget reports whether targets come from a servers file.
func (c *Config) MultiTarget() bool {
	return c.ServersFile != ""
}

// TunnelDefaults returns the run-wide jumphost settings.
func (c *Config) TunnelDefaults() target.TunnelParams {
	return target.TunnelParams{
		Jumphost: c.Jumphost,
		User:     c.JumphostUser,
		KeyPath:  c.SSHKey,
		Password: c.SSHPassword,
		Port:     c.JumphostPort,
	}
}

// Target builds the single target named by host, username and password.
func (c *Config) Target() target.Target {
	t := target.Target{
		Address:  c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
	}
	t.Normalize()
	return t
}
