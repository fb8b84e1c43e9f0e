package process

import (
	"fmt"
	"strings"
)

// Command is an external program run by a transition.
type Command struct {
	Command string            `yaml:"command" json:"command" mapstructure:"command"`
	Args    []string          `yaml:"args" json:"args" mapstructure:"args"`
	Env     map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	// Dir overrides the working directory of the Runner.
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

// Validate checks that a program is named.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("process: command is required")
	}
	return nil
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}
