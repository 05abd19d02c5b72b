// Package scenario loads scenario files and runs them step by step against a
// browser page.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidScenario is returned when a scenario file cannot be used.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrScenarioNotFound is returned when a scenario file does not exist.
	ErrScenarioNotFound = errors.New("scenario not found")
)

// Actions understood by the runner.
const (
	ActionNavigate     = "navigate"
	ActionClick        = "click"
	ActionType         = "type"
	ActionFill         = "fill"
	ActionWait         = "wait"
	ActionWaitURL      = "wait_url"
	ActionWaitResponse = "wait_response"
	ActionExpectPopup  = "expect_popup"
	ActionAssertText   = "assert_text"
	ActionScreenshot   = "screenshot"
	ActionUpload       = "upload"
	ActionLogin        = "login"
)

// Scenario is a named, linear list of steps.
type Scenario struct {
	Name          string            `yaml:"name" json:"name"`
	Description   string            `yaml:"description,omitempty" json:"description,omitempty"`
	RequiresLogin bool              `yaml:"requires_login,omitempty" json:"requires_login,omitempty"`
	Vars          map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	Steps         []Step            `yaml:"steps" json:"steps"`

	// Source is the file the scenario was read from.
	Source string `yaml:"-" json:"-"`
}

// Step is one action as written in a scenario file.
type Step struct {
	Action        string    `yaml:"action" json:"action"`
	Name          string    `yaml:"name,omitempty" json:"name,omitempty"`
	URL           string    `yaml:"url,omitempty" json:"url,omitempty"`
	Selector      Selectors `yaml:"selector,omitempty" json:"selector,omitempty"`
	Value         string    `yaml:"value,omitempty" json:"value,omitempty"`
	Contains      bool      `yaml:"contains,omitempty" json:"contains,omitempty"`
	Pattern       string    `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	State         string    `yaml:"state,omitempty" json:"state,omitempty"`
	Timeout       Duration  `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Optional      bool      `yaml:"optional,omitempty" json:"optional,omitempty"`
	ExpectStatus  int       `yaml:"expect_status,omitempty" json:"expect_status,omitempty"`
	ErrorSelector Selectors `yaml:"error_selector,omitempty" json:"error_selector,omitempty"`
	Files         []string  `yaml:"files,omitempty" json:"files,omitempty"`
	Screenshot    string    `yaml:"screenshot,omitempty" json:"screenshot,omitempty"`
	Trigger       *Trigger  `yaml:"trigger,omitempty" json:"trigger,omitempty"`
}

// Trigger is the click that a response or popup wait is armed around.
type Trigger struct {
	Action   string    `yaml:"action,omitempty" json:"action,omitempty"`
	Selector Selectors `yaml:"selector" json:"selector"`
}

// Selectors is an ordered list of selector definitions. A single string is
// accepted in place of a list.
type Selectors []string

// UnmarshalYAML accepts a scalar or a sequence.
func (s *Selectors) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = Selectors{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("selector must be a string or a list of strings")
	}
}

// Duration is a step timeout. Numbers are milliseconds; strings are either
// milliseconds or a Go duration such as "15s".
type Duration time.Duration

// UnmarshalYAML parses numbers and duration strings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("timeout must be a number or a duration string")
	}
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// Load reads and validates a scenario file. YAML and JSON are both
// accepted.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, path)
		}
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Source = path
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	raw, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidScenario)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	if err := ValidateStepStructure(raw["steps"], DefaultValidationLimits()); err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the decoded scenario.
func (sc *Scenario) Validate() error {
	limits := DefaultValidationLimits()
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(sc.Name) > limits.MaxNameLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrNameTooLong, len(sc.Name), limits.MaxNameLength)
	}
	if len(sc.Description) > limits.MaxDescriptionLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrDescriptionTooLong, len(sc.Description), limits.MaxDescriptionLength)
	}
	if len(sc.Steps) == 0 && !sc.RequiresLogin {
		return fmt.Errorf("%w: scenario has no steps", ErrInvalidScenario)
	}
	return nil
}
