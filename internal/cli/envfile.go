package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

// loadEnvironmentFile reads the top-level JSON object spec.md §6 defines
// for --environment-file: {env_key: {var: value}}.
func loadEnvironmentFile(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment file: %w", err)
	}
	var environments map[string]map[string]any
	if err := json.Unmarshal(data, &environments); err != nil {
		return nil, fmt.Errorf("decode environment file: %w", err)
	}
	return environments, nil
}
