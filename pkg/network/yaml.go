package network

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCase reads a case snapshot from a YAML file and validates it.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing case file %s: %w", path, err)
	}
	if c.BaseMVA == 0 {
		c.BaseMVA = 100
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
