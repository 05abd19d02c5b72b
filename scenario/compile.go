package scenario

import (
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/ui-harness/selector"
	"github.com/hairizuan-noorazman/ui-harness/urlmatch"
)

// Plan is a scenario with every reference resolved, ready to run.
type Plan struct {
	Scenario string
	RunID    string
	Unique   string
	Steps    []PlannedStep
}

// PlannedStep is a step with expanded values and compiled selectors.
type PlannedStep struct {
	Step

	Target        selector.Selector
	ErrorTarget   selector.Selector
	TriggerTarget selector.Selector
	URLPattern    *urlmatch.Pattern
}

// Compile expands variables, resolves selectors and URL patterns, and
// inlines login steps. Every reference error surfaces here, before a browser
// is opened.
func Compile(sc *Scenario, env Env) (*Plan, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	x, err := newExpander(env, sc.Vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	plan := &Plan{Scenario: sc.Name, RunID: env.RunID, Unique: env.Unique}

	steps := sc.Steps
	if sc.RequiresLogin && !env.LoggedIn {
		steps = append([]Step{{Action: ActionLogin, Name: "login"}}, steps...)
	}

	for i, st := range steps {
		if st.Action == ActionLogin {
			for _, ls := range Login(env.Settings).Steps {
				ls.Name = "login: " + ls.Name
				ps, err := x.compileStep(ls, env)
				if err != nil {
					return nil, fmt.Errorf("%w: step %d (login, %s): %w", ErrInvalidScenario, i+1, ls.Name, err)
				}
				plan.Steps = append(plan.Steps, ps)
			}
			continue
		}

		ps, err := x.compileStep(st, env)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d (%s): %w", ErrInvalidScenario, i+1, st.Action, err)
		}
		plan.Steps = append(plan.Steps, ps)
	}

	return plan, nil
}

func (x *expander) compileStep(st Step, env Env) (PlannedStep, error) {
	ps := PlannedStep{Step: st}
	var err error

	if st.Action == ActionFill {
		ps.Action = ActionType
	}

	if ps.Value, err = x.expand(st.Value); err != nil {
		return ps, err
	}
	if ps.Name, err = x.expand(st.Name); err != nil {
		return ps, err
	}
	if ps.Screenshot, err = x.expand(st.Screenshot); err != nil {
		return ps, err
	}
	if ps.Files, err = x.expandAll(st.Files); err != nil {
		return ps, err
	}

	if st.URL != "" {
		u, err := x.expand(st.URL)
		if err != nil {
			return ps, err
		}
		ps.URL = env.Settings.URL(u)
	}

	if len(st.Selector) > 0 {
		if ps.Target, err = x.resolveSelector(st.Selector); err != nil {
			return ps, err
		}
	}
	if len(st.ErrorSelector) > 0 {
		if ps.ErrorTarget, err = x.resolveSelector(st.ErrorSelector); err != nil {
			return ps, err
		}
	}
	if st.Trigger != nil {
		if ps.TriggerTarget, err = x.resolveSelector(st.Trigger.Selector); err != nil {
			return ps, err
		}
	}

	if st.Pattern != "" {
		pattern, err := x.expand(st.Pattern)
		if err != nil {
			return ps, err
		}
		if ps.URLPattern, err = urlmatch.Compile(pattern); err != nil {
			return ps, err
		}
		ps.Pattern = pattern
	}

	if ps.Name == "" {
		ps.Name = defaultName(ps)
	}
	return ps, nil
}

func defaultName(ps PlannedStep) string {
	target := ""
	switch {
	case ps.URL != "":
		target = ps.URL
	case !ps.Target.IsZero():
		target = ps.Target.Describe()
	case ps.Pattern != "":
		target = ps.Pattern
	case !ps.TriggerTarget.IsZero():
		target = ps.TriggerTarget.Describe()
	case ps.Value != "" && ps.Action == ActionScreenshot:
		target = ps.Value
	case ps.State != "":
		target = ps.State
	}
	return strings.TrimSpace(ps.Action + " " + target)
}
