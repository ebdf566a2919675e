package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentgraph/internal/command"
)

// Scenario is a sequence of commands run against a fresh content
// repository, followed by assertions on the resulting graph and event log.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Config is the directory holding the dimension and node type CUE
	// files. Relative paths are resolved against the scenario file.
	Config string `yaml:"config"`

	// Setup commands must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow commands may carry an expected rejection.
	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step is one command with its flat-map arguments.
type Step struct {
	Command string         `yaml:"command"`
	User    string         `yaml:"user,omitempty"`
	Args    map[string]any `yaml:"args"`

	// Expect, when set, requires the command to be rejected.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes an expected domain error. Empty fields are not checked.
type Expect struct {
	Code   string `yaml:"code"`
	Reason string `yaml:"reason,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type string `yaml:"type"`

	Workspace string            `yaml:"workspace,omitempty"`
	Point     map[string]string `yaml:"point,omitempty"`
	Node      string            `yaml:"node,omitempty"`

	// Visibility is "frontend" (default) or "withoutRestrictions".
	Visibility string `yaml:"visibility,omitempty"`

	Property string `yaml:"property,omitempty"`
	Value    any    `yaml:"value,omitempty"`

	Children []string `yaml:"children,omitempty"`
	Status   string   `yaml:"status,omitempty"`

	EventType string   `yaml:"event_type,omitempty"`
	Count     int      `yaml:"count,omitempty"`
	Events    []string `yaml:"events,omitempty"`
}

// Assertion types.
const (
	AssertNodeExists      = "node_exists"
	AssertNodeAbsent      = "node_absent"
	AssertProperty        = "property"
	AssertChildren        = "children"
	AssertWorkspaceStatus = "workspace_status"
	AssertEventCount      = "event_count"
	AssertEventOrder      = "event_order"
)

// LoadScenario reads a scenario file. Unknown fields are rejected, and the
// config directory is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if s.Config != "" && !filepath.IsAbs(s.Config) {
		s.Config = filepath.Join(filepath.Dir(path), s.Config)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Config == "" {
		errs = append(errs, errors.New("config is required"))
	}
	if len(s.Flow) == 0 {
		errs = append(errs, errors.New("flow must contain at least one step"))
	}

	known := make(map[string]bool)
	for _, t := range command.Types() {
		known[t] = true
	}
	check := func(section string, steps []Step) {
		for i, step := range steps {
			if !known[step.Command] {
				errs = append(errs, fmt.Errorf("%s[%d]: unknown command %q", section, i, step.Command))
			}
		}
	}
	check("setup", s.Setup)
	check("flow", s.Flow)
	for i, step := range s.Setup {
		if step.Expect != nil {
			errs = append(errs, fmt.Errorf("setup[%d]: setup steps cannot expect errors", i))
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertNodeExists, AssertNodeAbsent:
		if a.Workspace == "" || a.Node == "" {
			return fmt.Errorf("%s requires workspace and node", a.Type)
		}
	case AssertProperty:
		if a.Workspace == "" || a.Node == "" || a.Property == "" {
			return fmt.Errorf("%s requires workspace, node and property", a.Type)
		}
	case AssertChildren:
		if a.Workspace == "" || a.Node == "" {
			return fmt.Errorf("%s requires workspace and node", a.Type)
		}
	case AssertWorkspaceStatus:
		if a.Workspace == "" || a.Status == "" {
			return fmt.Errorf("%s requires workspace and status", a.Type)
		}
	case AssertEventCount:
		if a.EventType == "" {
			return fmt.Errorf("%s requires event_type", a.Type)
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("%s requires at least two events", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	switch a.Visibility {
	case "", "frontend", "withoutRestrictions":
	default:
		return fmt.Errorf("unknown visibility %q", a.Visibility)
	}
	return nil
}
