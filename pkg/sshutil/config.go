package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry represents a parsed host entry from SSH config.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string // The User value
	Port         string // The Port value
	IdentityFile string // The IdentityFile value
}

// sshConfigPath returns ~/.ssh/config.
func sshConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// lookupHost reads the settings for alias from the SSH config at path.
// found is false when the file is missing or unreadable, or when it sets
// nothing for alias. matchLine is the 1-based line of the first Match block,
// or 0 if there is none; entries after it are not visible.
func lookupHost(path, alias string) (entry SSHHostEntry, matchLine int, found bool) {
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		return SSHHostEntry{}, 0, false
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return SSHHostEntry{}, matchLine, false
	}

	entry = SSHHostEntry{Alias: alias}

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		entry.Hostname = hostname
		found = true
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		entry.Port = port
		found = true
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		entry.User = user
		found = true
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
		found = true
	}

	return entry, matchLine, found
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// The kevinburke/ssh_config library doesn't support Match, so everything from
// the first Match block on is dropped.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Match directive check (case insensitive)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1 // 1-indexed line number
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
