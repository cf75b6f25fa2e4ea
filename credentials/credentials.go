// Package credentials loads API keys from standard locations.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when the credentials file is readable
// by group or others.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// llmProviders are the names whose lookup may fall back to the generic
// [llm] section. Service keys (notion, brevo) never do.
var llmProviders = map[string]bool{
	"anthropic":     true,
	"openai":        true,
	"openai-compat": true,
	"google":        true,
	"groq":          true,
}

// Credentials holds API keys loaded from credentials.toml.
type Credentials struct {
	// LLM is the generic LLM API key, used when a provider-specific key
	// is not found.
	LLM *KeyEntry `toml:"llm"`

	// sections holds every named [section] with an api_key.
	sections map[string]*KeyEntry
}

// KeyEntry holds the credentials for a single provider or service.
type KeyEntry struct {
	APIKey string `toml:"api_key"`
}

// StandardPaths returns the credential file locations in priority order.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "sidequest", "credentials.toml"),
			filepath.Join(home, ".sidequest", "credentials.toml"),
		)
	}

	return paths
}

// Load loads credentials from the first available standard location.
// A missing file is not an error; callers fall back to the environment.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions unless the file is owner read-only.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		mode := info.Mode().Perm()
		if mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var rawData map[string]interface{}
	if _, err := toml.DecodeFile(path, &rawData); err != nil {
		return nil, err
	}

	creds := &Credentials{
		sections: make(map[string]*KeyEntry),
	}

	for key, value := range rawData {
		section, ok := value.(map[string]interface{})
		if !ok {
			continue
		}

		apiKey, _ := section["api_key"].(string)
		if apiKey == "" {
			continue
		}

		entry := &KeyEntry{APIKey: apiKey}
		if key == "llm" {
			creds.LLM = entry
		} else {
			creds.sections[key] = entry
		}
	}

	return creds, nil
}

// GetAPIKey returns the API key for a provider or service name.
// Priority: [name] section > [llm] section (LLM providers only) >
// environment variable.
func (c *Credentials) GetAPIKey(name string) string {
	if c != nil {
		normalized := strings.ToLower(strings.ReplaceAll(name, "-", ""))

		if entry, ok := c.sections[name]; ok && entry.APIKey != "" {
			return entry.APIKey
		}
		if entry, ok := c.sections[normalized]; ok && entry.APIKey != "" {
			return entry.APIKey
		}

		if llmProviders[name] && c.LLM != nil && c.LLM.APIKey != "" {
			return c.LLM.APIKey
		}
	}

	return os.Getenv(EnvVarFor(name))
}

// EnvVarFor returns the environment variable holding the key for a name.
func EnvVarFor(name string) string {
	switch name {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai", "openai-compat":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "notion":
		return "NOTION_API_KEY"
	case "brevo":
		return "BREVO_API_KEY"
	default:
		return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
	}
}
