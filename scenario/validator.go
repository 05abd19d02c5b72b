package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNameTooLong is returned when the name exceeds the maximum length.
	ErrNameTooLong = errors.New("name exceeds maximum length")

	// ErrDescriptionTooLong is returned when the description exceeds the maximum length.
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")

	// ErrStepsJSONTooLong is returned when the serialized steps exceed the maximum length.
	ErrStepsJSONTooLong = errors.New("steps JSON exceeds maximum length")

	// ErrTooManySteps is returned when the number of steps exceeds the maximum.
	ErrTooManySteps = errors.New("too many steps")

	// ErrInvalidStepStructure is returned when step structure is invalid.
	ErrInvalidStepStructure = errors.New("invalid step structure")
)

// ValidationLimits defines the limits for scenario validation.
type ValidationLimits struct {
	MaxNameLength        int
	MaxDescriptionLength int
	MaxStepsJSONLength   int
	MaxStepsCount        int
}

// DefaultValidationLimits returns the default validation limits.
func DefaultValidationLimits() ValidationLimits {
	return ValidationLimits{
		MaxNameLength:        255,
		MaxDescriptionLength: 5000,
		MaxStepsJSONLength:   50000,
		MaxStepsCount:        200,
	}
}

var loadStates = map[string]bool{
	"commit":           true,
	"domcontentloaded": true,
	"load":             true,
	"networkidle":      true,
}

// ValidateStepStructure validates the raw steps of a scenario document:
// known action types, the fields each action requires and the field types.
func ValidateStepStructure(raw interface{}, limits ValidationLimits) error {
	if raw == nil {
		return nil
	}

	steps, ok := raw.([]interface{})
	if !ok {
		return fmt.Errorf("%w: steps must be a list", ErrInvalidStepStructure)
	}

	if len(steps) > limits.MaxStepsCount {
		return fmt.Errorf("%w: %d steps (max %d)", ErrTooManySteps, len(steps), limits.MaxStepsCount)
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	if len(stepsJSON) > limits.MaxStepsJSONLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrStepsJSONTooLong, len(stepsJSON), limits.MaxStepsJSONLength)
	}

	for i, item := range steps {
		step, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: step %d must be an object", ErrInvalidStepStructure, i)
		}

		action, ok := step["action"].(string)
		if !ok {
			return fmt.Errorf("%w: step %d missing or invalid 'action' field", ErrInvalidStepStructure, i)
		}

		if err := validateStepRequiredFields(action, step, i); err != nil {
			return err
		}
		if err := validateStepFieldTypes(step, i); err != nil {
			return err
		}
	}

	return nil
}

func requireField(step map[string]interface{}, action, field string, index int) error {
	if _, ok := step[field]; !ok {
		return fmt.Errorf("%w: step %d (%s) missing required '%s' field", ErrInvalidStepStructure, index, action, field)
	}
	return nil
}

// validateStepRequiredFields checks that required fields exist for each action type.
func validateStepRequiredFields(action string, step map[string]interface{}, index int) error {
	switch action {
	case ActionNavigate:
		return requireField(step, action, "url", index)

	case ActionClick:
		return requireField(step, action, "selector", index)

	case ActionType, ActionFill, ActionAssertText:
		if err := requireField(step, action, "selector", index); err != nil {
			return err
		}
		return requireField(step, action, "value", index)

	case ActionUpload:
		if err := requireField(step, action, "selector", index); err != nil {
			return err
		}
		return requireField(step, action, "files", index)

	case ActionWait:
		_, hasSelector := step["selector"]
		state, _ := step["state"].(string)
		if !hasSelector && state == "" {
			return fmt.Errorf("%w: step %d (wait) needs a 'selector' or a load 'state'", ErrInvalidStepStructure, index)
		}
		if hasSelector && loadStates[state] {
			return fmt.Errorf("%w: step %d (wait) state '%s' is a page load state, not an element state", ErrInvalidStepStructure, index, state)
		}
		if !hasSelector && !loadStates[state] {
			return fmt.Errorf("%w: step %d (wait) state '%s' needs a 'selector'", ErrInvalidStepStructure, index, state)
		}

	case ActionWaitURL, ActionWaitResponse:
		return requireField(step, action, "pattern", index)

	case ActionExpectPopup:
		return requireField(step, action, "trigger", index)

	case ActionScreenshot:
		return requireField(step, action, "value", index)

	case ActionLogin:

	default:
		return fmt.Errorf("%w: step %d has unknown action type '%s'", ErrInvalidStepStructure, index, action)
	}
	return nil
}

// validateStepFieldTypes validates that step fields have expected types.
func validateStepFieldTypes(step map[string]interface{}, index int) error {
	stringFields := map[string]bool{
		"action":     true,
		"name":       true,
		"url":        true,
		"value":      true,
		"pattern":    true,
		"state":      true,
		"screenshot": true,
	}

	for key, value := range step {
		if stringFields[key] {
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%w: step %d field '%s' must be a string", ErrInvalidStepStructure, index, key)
			}
		}

		// timeout can be number or string
		if key == "timeout" {
			switch v := value.(type) {
			case float64, int, int64:
			case string:
				if _, err := parseDuration(v); err != nil {
					return fmt.Errorf("%w: step %d field 'timeout': %v", ErrInvalidStepStructure, index, err)
				}
			default:
				return fmt.Errorf("%w: step %d field 'timeout' must be a number or string", ErrInvalidStepStructure, index)
			}
		}
	}

	return nil
}
