package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/selector"
)

func testEnv(t *testing.T, extra map[string]interface{}) Env {
	t.Helper()
	doc := map[string]interface{}{
		"baseUrl": "http://console.test",
		"credentials": map[string]interface{}{
			"email":    "qa@example.com",
			"password": "hunter2",
		},
	}
	for k, v := range extra {
		doc[k] = v
	}
	cfg, err := config.FromMap(doc)
	require.NoError(t, err)

	return Env{
		Config:   cfg,
		Settings: cfg.Settings(),
		RunID:    "run-1",
		Unique:   "20260102_150405",
		LookupEnv: func(name string) (string, bool) {
			if name == "TEAM" {
				return "qa", true
			}
			return "", false
		},
	}
}

func TestCompile_Expansion(t *testing.T) {
	env := testEnv(t, map[string]interface{}{"project": "demo"})
	sc := &Scenario{
		Name: "expand",
		Vars: map[string]string{"machine": "m_${run.unique}"},
		Steps: []Step{
			{Action: ActionNavigate, URL: "/console/${config:project}"},
			{Action: ActionFill, Selector: Selectors{"testid:name"}, Value: "${vars.machine}-${env:TEAM}"},
			{Action: ActionScreenshot, Value: "created_${run.id}"},
		},
	}

	plan, err := Compile(sc, env)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	assert.Equal(t, "run-1", plan.RunID)
	assert.Equal(t, "http://console.test/console/demo", plan.Steps[0].URL)
	assert.Equal(t, "navigate http://console.test/console/demo", plan.Steps[0].Name)
	assert.Equal(t, ActionType, plan.Steps[1].Action)
	assert.Equal(t, "m_20260102_150405-qa", plan.Steps[1].Value)
	assert.Equal(t, "created_run-1", plan.Steps[2].Value)
}

func TestCompile_EnvVarsOverrideScenarioVars(t *testing.T) {
	env := testEnv(t, nil)
	env.Vars = map[string]string{"machine": "fixed"}
	sc := &Scenario{
		Name:  "override",
		Vars:  map[string]string{"machine": "m_${run.unique}"},
		Steps: []Step{{Action: ActionFill, Selector: Selectors{"testid:name"}, Value: "${vars.machine}"}},
	}

	plan, err := Compile(sc, env)
	require.NoError(t, err)
	assert.Equal(t, "fixed", plan.Steps[0].Value)
}

func TestCompile_UnknownReferences(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"unknown var", Step{Action: ActionFill, Selector: Selectors{"testid:a"}, Value: "${vars.nope}"}},
		{"unset env", Step{Action: ActionFill, Selector: Selectors{"testid:a"}, Value: "${env:NOPE}"}},
		{"missing config key", Step{Action: ActionNavigate, URL: "${config:nope.path}"}},
		{"unknown namespace", Step{Action: ActionScreenshot, Value: "${what}"}},
		{"unknown named selector", Step{Action: ActionClick, Selector: Selectors{"@nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&Scenario{Name: "x", Steps: []Step{tt.step}}, testEnv(t, nil))
			assert.ErrorIs(t, err, ErrInvalidScenario)
			assert.ErrorIs(t, err, ErrUnknownReference)
		})
	}
}

func TestCompile_InvalidSelectorAndPattern(t *testing.T) {
	env := testEnv(t, nil)

	_, err := Compile(&Scenario{Name: "x", Steps: []Step{
		{Action: ActionClick, Selector: Selectors{"bogus:thing"}},
	}}, env)
	assert.ErrorIs(t, err, selector.ErrUnknownKind)

	_, err = Compile(&Scenario{Name: "x", Steps: []Step{
		{Action: ActionWaitURL, Pattern: "re:("},
	}}, env)
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

func TestCompile_NamedSelectors(t *testing.T) {
	env := testEnv(t, map[string]interface{}{
		"selectors": map[string]interface{}{
			"machine_name": []interface{}{"testid:machine-name", "css:#name"},
		},
	})
	sc := &Scenario{Name: "named", Steps: []Step{
		{Action: ActionFill, Selector: Selectors{"@machine_name"}, Value: "m1"},
		{Action: ActionClick, Selector: Selectors{"@login_submit"}},
		{Action: ActionClick, Selector: Selectors{"testid:first", "@machine_name"}},
	}}

	plan, err := Compile(sc, env)
	require.NoError(t, err)

	first := plan.Steps[0].Target
	assert.Equal(t, "machine_name", first.Name)
	require.Len(t, first.Strategies, 2)
	assert.Equal(t, selector.KindTestID, first.Strategies[0].Kind)
	assert.Equal(t, "#name", first.Strategies[1].Value)

	// login selectors fall back to built-in defaults
	assert.Equal(t, "testid:login-submit-button", plan.Steps[1].Target.Strategies[0].String())

	mixed := plan.Steps[2].Target
	require.Len(t, mixed.Strategies, 3)
	assert.Equal(t, "testid:first", mixed.Strategies[0].String())
}

func TestCompile_RequiresLogin(t *testing.T) {
	env := testEnv(t, nil)
	sc := &Scenario{
		Name:          "after login",
		RequiresLogin: true,
		Steps:         []Step{{Action: ActionClick, Name: "open resources", Selector: Selectors{"testid:resources"}}},
	}

	plan, err := Compile(sc, env)
	require.NoError(t, err)
	loginSteps := len(Login(env.Settings).Steps)
	require.Len(t, plan.Steps, loginSteps+1)
	assert.Equal(t, "login: open login page", plan.Steps[0].Name)
	assert.Equal(t, "http://console.test/console/login", plan.Steps[0].URL)
	assert.Equal(t, "qa@example.com", plan.Steps[1].Value)
	assert.Equal(t, "hunter2", plan.Steps[2].Value)
	assert.Equal(t, "open resources", plan.Steps[loginSteps].Name)

	env.LoggedIn = true
	plan, err = Compile(sc, env)
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 1)
}

func TestCompile_PasswordIsNotReexpanded(t *testing.T) {
	env := testEnv(t, map[string]interface{}{
		"credentials": map[string]interface{}{"email": "qa@example.com", "password": "pa${ss"},
	})
	plan, err := Compile(&Scenario{Name: "login", Steps: []Step{{Action: ActionLogin}}}, env)
	require.NoError(t, err)
	assert.Equal(t, "pa${ss", plan.Steps[2].Value)
}

func TestLogin_Variants(t *testing.T) {
	env := testEnv(t, map[string]interface{}{
		"login": map[string]interface{}{
			"useHeaderLink":   true,
			"linkText":        "Sign in",
			"responsePattern": "/api/StoredProcedure/CreateAuthenticationRequest",
			"errorSelector":   "css:.ant-message-error",
		},
	})

	sc := Login(env.Settings)
	require.GreaterOrEqual(t, len(sc.Steps), 4)
	assert.Equal(t, ActionNavigate, sc.Steps[0].Action)
	assert.Equal(t, "http://console.test/en", sc.Steps[0].URL)
	assert.Equal(t, ActionExpectPopup, sc.Steps[1].Action)
	assert.Equal(t, Selectors{"role:link=|Sign in", "text:=Sign in"}, sc.Steps[1].Trigger.Selector)

	var submit Step
	for _, st := range sc.Steps {
		if st.Name == "submit login" {
			submit = st
		}
	}
	assert.Equal(t, ActionWaitResponse, submit.Action)
	assert.Equal(t, Selectors{"css:.ant-message-error"}, submit.ErrorSelector)
	assert.Equal(t, LoginScreenshot, sc.Steps[len(sc.Steps)-1].Value)
}
