package scenario

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/selector"
)

// ErrUnknownReference is returned for a ${...} or @name reference that
// cannot be resolved.
var ErrUnknownReference = errors.New("unknown reference")

// UniqueLayout is the time layout of ${run.unique}.
const UniqueLayout = "20060102_150405"

// Env is everything a scenario may reference.
type Env struct {
	Config   *config.Config
	Settings config.Settings
	RunID    string
	// Unique is the per-run suffix used to keep resource names distinct.
	Unique string
	// Vars override the scenario's own vars.
	Vars map[string]string
	// LoggedIn skips the login prepended for requires_login.
	LoggedIn bool
	// LookupEnv resolves ${env:NAME}. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// UniqueSuffix formats t as a ${run.unique} value.
func UniqueSuffix(t time.Time) string {
	return t.Format(UniqueLayout)
}

var refPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

type expander struct {
	env  Env
	vars map[string]string
}

func newExpander(env Env, own map[string]string) (*expander, error) {
	x := &expander{env: env, vars: map[string]string{}}
	if x.env.LookupEnv == nil {
		x.env.LookupEnv = os.LookupEnv
	}

	// Scenario vars may reference config, env and run values, not each other.
	for k, v := range own {
		expanded, err := x.expand(v)
		if err != nil {
			return nil, fmt.Errorf("vars.%s: %w", k, err)
		}
		x.vars[k] = expanded
	}
	for k, v := range env.Vars {
		x.vars[k] = v
	}
	return x, nil
}

// expand replaces every ${...} reference in s.
func (x *expander) expand(s string) (string, error) {
	var firstErr error
	out := refPattern.ReplaceAllStringFunc(s, func(m string) string {
		ref := strings.TrimSpace(m[2 : len(m)-1])
		val, err := x.lookup(ref)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (x *expander) lookup(ref string) (string, error) {
	switch {
	case ref == "run.id":
		return x.env.RunID, nil

	case ref == "run.unique":
		return x.env.Unique, nil

	case strings.HasPrefix(ref, "vars."):
		name := strings.TrimPrefix(ref, "vars.")
		if v, ok := x.vars[name]; ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: ${%s}", ErrUnknownReference, ref)

	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		if v, ok := x.env.LookupEnv(name); ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: ${%s} is not set", ErrUnknownReference, ref)

	case strings.HasPrefix(ref, "config:"):
		key := strings.TrimPrefix(ref, "config:")
		if x.env.Config == nil {
			return "", fmt.Errorf("%w: ${%s}, no configuration loaded", ErrUnknownReference, ref)
		}
		raw, ok := x.env.Config.Get(key)
		if !ok {
			return "", fmt.Errorf("%w: ${%s}", ErrUnknownReference, ref)
		}
		v, err := cast.ToStringE(raw)
		if err != nil {
			return "", fmt.Errorf("%w: ${%s} is not a scalar", ErrUnknownReference, ref)
		}
		return v, nil
	}
	return "", fmt.Errorf("%w: ${%s}", ErrUnknownReference, ref)
}

func (x *expander) expandAll(list []string) ([]string, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		v, err := x.expand(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// defaultSelectors back the @name references used by the built-in login
// when the configuration does not define them.
var defaultSelectors = map[string][]string{
	"login_email":    {"testid:login-email-input", "css:input[type=email]", "css:input[name=email]"},
	"login_password": {"testid:login-password-input", "css:input[type=password]"},
	"login_submit":   {"testid:login-submit-button", "role:button|Sign In", "css:button[type=submit]"},
}

// resolveSelector turns expanded definitions into a Selector. A definition
// "@name" is replaced by the strategies stored under selectors.<name>.
func (x *expander) resolveSelector(defs []string) (selector.Selector, error) {
	var sel selector.Selector
	for _, def := range defs {
		def, err := x.expand(def)
		if err != nil {
			return selector.Selector{}, err
		}

		if !strings.HasPrefix(def, "@") {
			st, err := selector.ParseStrategy(def)
			if err != nil {
				return selector.Selector{}, err
			}
			sel.Strategies = append(sel.Strategies, st)
			continue
		}

		name := strings.TrimPrefix(def, "@")
		named, err := x.namedSelector(name)
		if err != nil {
			return selector.Selector{}, err
		}
		if sel.Name == "" && len(defs) == 1 {
			sel.Name = name
		}
		sel.Strategies = append(sel.Strategies, named.Strategies...)
	}
	return sel, nil
}

func (x *expander) namedSelector(name string) (selector.Selector, error) {
	if x.env.Config != nil {
		if raw, ok := x.env.Config.Selector(name); ok {
			return selector.FromValue(name, raw)
		}
	}
	if defs, ok := defaultSelectors[name]; ok {
		return selector.FromValue(name, defs)
	}
	return selector.Selector{}, fmt.Errorf("%w: selector @%s", ErrUnknownReference, name)
}
