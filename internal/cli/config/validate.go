package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
)

// Validate checks the project settings and the output format.
func (c *Config) Validate() error {
	if err := c.ProjectConfig.Validate(); err != nil {
		return err
	}
	if c.OutputFormat != "" && !slices.Contains(output.Modes(), c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (want one of %v)", c.OutputFormat, output.Modes())
	}
	return nil
}
