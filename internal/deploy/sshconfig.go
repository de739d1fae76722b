package deploy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SSHConfig holds the parsed SSH configuration for one host.
type SSHConfig struct {
	Host          string
	HostName      string
	User          string
	IdentityFile  string
	IdentityAgent string
	Port          string
}

// ParseSSHConfig reads and parses ~/.ssh/config for the given host.
func ParseSSHConfig(host string) (*SSHConfig, error) {
	return ParseSSHConfigFrom(host, "")
}

// ParseSSHConfigFrom reads and parses an SSH config file for the given host.
// An empty configPath means ~/.ssh/config. A missing file is not an error;
// it returns nil without one.
func ParseSSHConfigFrom(host, configPath string) (*SSHConfig, error) {
	// HOME wins over the account database so tests can point it at a
	// scratch directory.
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir, _ = os.UserHomeDir()
	}
	if configPath == "" {
		if homeDir == "" {
			return nil, fmt.Errorf("failed to locate home directory")
		}
		configPath = filepath.Join(homeDir, ".ssh", "config")
	}

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open SSH config: %w", err)
	}
	defer file.Close()

	return parseSSHConfigReader(host, file, homeDir)
}

// parseSSHConfigReader parses SSH config text. The first Host block whose
// pattern matches wins; parsing stops at the next Host line.
func parseSSHConfigReader(host string, r io.Reader, homeDir string) (*SSHConfig, error) {
	config := &SSHConfig{Host: host}
	inMatchingHost := false
	foundMatch := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		keyword := strings.ToLower(parts[0])
		value := strings.Join(parts[1:], " ")

		switch keyword {
		case "host":
			if inMatchingHost {
				return config, nil
			}
			inMatchingHost = false
			for _, pattern := range parts[1:] {
				if MatchHost(host, pattern) {
					inMatchingHost = true
					foundMatch = true
					break
				}
			}

		case "hostname":
			if inMatchingHost {
				config.HostName = value
			}

		case "user":
			if inMatchingHost {
				config.User = value
			}

		case "identityfile":
			if inMatchingHost {
				config.IdentityFile = expandHome(value, homeDir)
			}

		case "port":
			if inMatchingHost {
				config.Port = value
			}

		case "identityagent":
			if inMatchingHost {
				value = strings.Trim(value, `"`)
				config.IdentityAgent = expandHome(value, homeDir)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SSH config: %w", err)
	}

	if !foundMatch {
		return nil, nil
	}

	return config, nil
}

// expandHome replaces a leading ~/ with the home directory.
func expandHome(value, homeDir string) string {
	if strings.HasPrefix(value, "~/") && homeDir != "" {
		return filepath.Join(homeDir, value[2:])
	}
	return value
}

// MatchHost reports whether the target host matches an SSH config host
// pattern. Patterns may use the * and ? wildcards. Negated (!) patterns are
// not supported.
func MatchHost(target, pattern string) bool {
	matched, err := path.Match(pattern, target)
	if err != nil {
		return target == pattern
	}
	return matched
}

// ResolveSSHTarget resolves connection details for a target, consulting
// ~/.ssh/config. Explicit user and key arguments override config values.
// Returns: hostname, user, keyPath, identityAgent, error.
func ResolveSSHTarget(target, user, keyPath string) (string, string, string, string, error) {
	targetHost := target
	targetUser := user
	if strings.Contains(target, "@") {
		parts := strings.SplitN(target, "@", 2)
		targetUser = parts[0]
		targetHost = parts[1]
	}

	config, err := ParseSSHConfig(targetHost)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to parse SSH config: %w", err)
	}

	if config == nil {
		return targetHost, targetUser, keyPath, "", nil
	}

	finalHost := targetHost
	if config.HostName != "" {
		finalHost = config.HostName
	}

	finalUser := targetUser
	if finalUser == "" && config.User != "" {
		finalUser = config.User
	}

	finalKey := keyPath
	if finalKey == "" && config.IdentityFile != "" {
		finalKey = config.IdentityFile
	}

	return finalHost, finalUser, finalKey, config.IdentityAgent, nil
}
