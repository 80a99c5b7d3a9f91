package target

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/idrac-power/internal/errors"
)

var requiredColumns = []string{"ip", "username", "password"}

// LoadCSV reads targets from a server file. See ParseCSV for the format.
func LoadCSV(path string) ([]Target, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrTarget,
				fmt.Sprintf("Server file not found: %s", path),
				"Check the --servers-file path")
		}
		return nil, errors.WrapWithCode(err, errors.ErrTarget,
			fmt.Sprintf("Couldn't open server file %s", path),
			"Check the file permissions")
	}
	defer f.Close()

	targets, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// ParseCSV reads a header row followed by one target per row.
//
// Required columns: ip, username, password. Optional columns: name, port,
// jumphost, jumphost_user, jumphost_ssh_key, jumphost_ssh_password,
// jumphost_port. Column order does not matter and unknown columns are
// ignored. Every row is validated; the first invalid row fails the load.
func ParseCSV(r io.Reader) ([]Target, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrTarget,
			"Server file is empty",
			"Add a header row: ip,username,password")
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTarget,
			"Couldn't read server file header", "")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrTarget,
			fmt.Sprintf("Server file is missing columns: %s (found: %s)",
				strings.Join(missing, ", "), strings.Join(header, ", ")),
			"Required columns are ip, username, password")
	}

	var targets []Target
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrTarget,
				"Couldn't parse server file", "Check for unbalanced quotes")
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		t := Target{
			Name:     field("name"),
			Address:  field("ip"),
			Username: field("username"),
			Password: field("password"),
			Tunnel: TunnelParams{
				Jumphost: field("jumphost"),
				User:     field("jumphost_user"),
				KeyPath:  field("jumphost_ssh_key"),
				Password: field("jumphost_ssh_password"),
			},
		}

		if t.Port, err = parsePort(field("port")); err != nil {
			return nil, errors.New(errors.ErrTarget,
				fmt.Sprintf("Invalid port %q at line %d", field("port"), line),
				"Ports must be whole numbers between 1 and 65535")
		}
		if t.Tunnel.Port, err = parsePort(field("jumphost_port")); err != nil {
			return nil, errors.New(errors.ErrTarget,
				fmt.Sprintf("Invalid jumphost_port %q at line %d", field("jumphost_port"), line),
				"Ports must be whole numbers between 1 and 65535")
		}

		t.Normalize()
		if err := t.Validate(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrTarget,
				fmt.Sprintf("Invalid server file entry at line %d", line), "")
		}
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		return nil, errors.New(errors.ErrTarget,
			"Server file has no targets",
			"Add one row per controller below the header")
	}
	return targets, nil
}

// parsePort returns 0 for an empty string so Normalize can apply the default.
func parsePort(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
