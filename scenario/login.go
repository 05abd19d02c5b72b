package scenario

import (
	"github.com/hairizuan-noorazman/ui-harness/config"
)

// LoginScenarioName names the built-in login scenario.
const LoginScenarioName = "login"

// LoginScreenshot is the screenshot taken once the dashboard is reached.
const LoginScreenshot = "login_success"

// Login returns the built-in login scenario for the configured console.
//
// Credentials are referenced through ${config:...} rather than copied so the
// values are never expanded a second time.
func Login(s config.Settings) *Scenario {
	var steps []Step

	if s.Login.UseHeaderLink {
		steps = append(steps,
			Step{
				Action: ActionNavigate,
				Name:   "open landing page",
				URL:    s.URL(s.Login.EntryPath),
				State:  "networkidle",
			},
			Step{
				Action: ActionExpectPopup,
				Name:   "open login popup",
				Trigger: &Trigger{
					Action:   ActionClick,
					Selector: Selectors{"role:link=|" + s.Login.LinkText, "text:=" + s.Login.LinkText},
				},
			},
		)
	} else {
		steps = append(steps, Step{
			Action: ActionNavigate,
			Name:   "open login page",
			URL:    s.URL(s.Login.Path),
			State:  "networkidle",
		})
	}

	steps = append(steps,
		Step{
			Action:   ActionFill,
			Name:     "fill email",
			Selector: Selectors{"@login_email"},
			Value:    "${config:credentials.email}",
		},
		Step{
			Action:   ActionFill,
			Name:     "fill password",
			Selector: Selectors{"@login_password"},
			Value:    "${config:credentials.password}",
		},
	)

	var errSel Selectors
	if s.Login.ErrorSelector != "" {
		errSel = Selectors{s.Login.ErrorSelector}
	}

	if s.Login.ResponsePattern != "" {
		steps = append(steps, Step{
			Action:        ActionWaitResponse,
			Name:          "submit login",
			Pattern:       s.Login.ResponsePattern,
			Trigger:       &Trigger{Action: ActionClick, Selector: Selectors{"@login_submit"}},
			ErrorSelector: errSel,
		})
	} else {
		steps = append(steps, Step{
			Action:   ActionClick,
			Name:     "submit login",
			Selector: Selectors{"@login_submit"},
		})
	}

	steps = append(steps,
		Step{
			Action:        ActionWaitURL,
			Name:          "reach dashboard",
			Pattern:       s.Login.DashboardURL,
			ErrorSelector: errSel,
		},
		Step{
			Action:   ActionWait,
			Name:     "dashboard settled",
			State:    "networkidle",
			Optional: true,
		},
		Step{
			Action: ActionScreenshot,
			Name:   "login screenshot",
			Value:  LoginScreenshot,
		},
	)

	return &Scenario{
		Name:        LoginScenarioName,
		Description: "Log in to the console and reach the dashboard",
		Steps:       steps,
	}
}
