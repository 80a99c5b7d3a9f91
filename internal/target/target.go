// Package target describes the management controllers to poll and how to
// reach them.
package target

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rileyhilliard/idrac-power/internal/errors"
)

const (
	// DefaultPort is the controller's HTTPS port when none is given.
	DefaultPort = 443
	// DefaultSSHPort is the jumphost SSH port when none is given.
	DefaultSSHPort = 22
)

// Target is one remote management controller.
type Target struct {
	Name     string `csv:"name"`
	Address  string `csv:"ip" validate:"required,hostname_rfc1123|ip"`
	Port     int    `csv:"port" validate:"min=1,max=65535"`
	Username string `csv:"username" validate:"required"`
	Password string `csv:"password" validate:"required"`

	// Tunnel holds per-target jumphost settings. Empty fields fall back to
	// the run-wide defaults, field by field.
	Tunnel TunnelParams
}

// TunnelParams configures the SSH jumphost used to reach a target. A zero
// Jumphost means connect directly.
type TunnelParams struct {
	Jumphost string `csv:"jumphost"`
	User     string `csv:"jumphost_user"`
	KeyPath  string `csv:"jumphost_ssh_key"`
	Password string `csv:"jumphost_ssh_password"`
	Port     int    `csv:"jumphost_port" validate:"omitempty,min=1,max=65535"`
}

// Enabled reports whether a jumphost is configured.
func (p TunnelParams) Enabled() bool {
	return p.Jumphost != ""
}

// Merge returns p with every empty field filled from defaults.
func (p TunnelParams) Merge(defaults TunnelParams) TunnelParams {
	if p.Jumphost == "" {
		p.Jumphost = defaults.Jumphost
	}
	if p.User == "" {
		p.User = defaults.User
	}
	if p.KeyPath == "" {
		p.KeyPath = defaults.KeyPath
	}
	if p.Password == "" {
		p.Password = defaults.Password
	}
	if p.Port == 0 {
		p.Port = defaults.Port
	}
	return p
}

// SSHPort returns the jumphost port, defaulting to 22.
func (p TunnelParams) SSHPort() int {
	if p.Port == 0 {
		return DefaultSSHPort
	}
	return p.Port
}

// Normalize trims whitespace and applies the name and port defaults.
func (t *Target) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Address = strings.TrimSpace(t.Address)
	t.Username = strings.TrimSpace(t.Username)
	t.Password = strings.TrimSpace(t.Password)
	t.Tunnel.Jumphost = strings.TrimSpace(t.Tunnel.Jumphost)
	t.Tunnel.User = strings.TrimSpace(t.Tunnel.User)
	t.Tunnel.KeyPath = strings.TrimSpace(t.Tunnel.KeyPath)
	t.Tunnel.Password = strings.TrimSpace(t.Tunnel.Password)

	if t.Name == "" {
		t.Name = t.Address
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
}

// HostPort returns "address:port".
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by the column names users write in their server files.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("csv"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the target's required fields and ranges.
func (t Target) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.WrapWithCode(err, errors.ErrTarget,
			fmt.Sprintf("Couldn't validate target %q", t.Name), "")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	name := t.Name
	if name == "" {
		name = t.Address
	}
	return errors.New(errors.ErrTarget,
		fmt.Sprintf("Invalid target %q: %s", name, strings.Join(msgs, "; ")),
		"Each target needs ip, username and password; ports must be between 1 and 65535.")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and 65535", field)
	case "hostname_rfc1123|ip":
		return fmt.Sprintf("%s must be a hostname or IP address", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
