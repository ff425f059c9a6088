package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var secretsExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// discoverSecretsFile returns the secrets file to merge, or "" when there is none.
// An explicit <PREFIX>_SECRETS_FILE must point to a readable file. Otherwise a
// secrets file next to the config file wins over one in the working directory.
func (l *ViperLoader) discoverSecretsFile() (path string, explicit bool, err error) {
	envName := l.prefixedEnv("SECRETS_FILE")
	if raw, ok := os.LookupEnv(envName); ok {
		path = strings.TrimSpace(raw)
		if path == "" {
			return "", true, fmt.Errorf("%s is set but empty", envName)
		}
		if err := requireRegularFile(path); err != nil {
			return "", true, fmt.Errorf("%s: %w", envName, err)
		}
		return path, true, nil
	}

	for _, candidate := range l.secretsCandidates() {
		if requireRegularFile(candidate) == nil {
			return candidate, false, nil
		}
	}
	return "", false, nil
}

func (l *ViperLoader) secretsCandidates() []string {
	var candidates []string
	if l.configFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile)))
	}
	for _, ext := range secretsExtensions {
		candidates = append(candidates, "secrets"+ext)
	}
	return candidates
}

func requireRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("secrets file %s is not accessible: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secrets file %s is a directory", path)
	}
	return nil
}
