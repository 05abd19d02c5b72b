package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/ui-harness/browser/browsertest"
	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
)

const suiteYAML = `
scenarios:
  - name: smoke
    description: Resource pages
    files: [machines.yaml, volumes.yaml]
  - name: tolerant
    continue_on_failure: true
    files: [machines.yaml]
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(suiteYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke", "tolerant"}, f.Names())

	d, err := f.Find("tolerant")
	require.NoError(t, err)
	assert.True(t, d.ContinueOnFailure)

	_, err = f.Find("nightly")
	assert.ErrorIs(t, err, ErrSuiteNotFound)
	assert.Contains(t, err.Error(), "smoke, tolerant")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "scenarios: []\n"},
		{"missing name", "scenarios:\n  - files: [a.yaml]\n"},
		{"duplicate name", "scenarios:\n  - name: a\n    files: [a.yaml]\n  - name: a\n    files: [b.yaml]\n"},
		{"no files", "scenarios:\n  - name: a\n"},
		{"not yaml", "scenarios: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidSuite)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("suite.yaml", suiteYAML)
	write("machines.yaml", "name: machines\nsteps:\n  - action: navigate\n    url: /console/machines\n")

	f, err := Load(filepath.Join(dir, "suite.yaml"))
	require.NoError(t, err)
	assert.Equal(t, dir, f.Dir)

	d, err := f.Find("smoke")
	require.NoError(t, err)
	_, err = f.LoadScenarios(d)
	assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)

	d, err = f.Find("tolerant")
	require.NoError(t, err)
	scs, err := f.LoadScenarios(d)
	require.NoError(t, err)
	require.Len(t, scs, 1)
	assert.Equal(t, "machines", scs[0].Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrSuiteNotFound)
}

type fixture struct {
	page   *browsertest.Page
	opener *browsertest.Opener
	log    *logger.TestLogger
	runner *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.FromMap(map[string]interface{}{
		"baseUrl":     "http://console.test",
		"credentials": map[string]interface{}{"email": "qa@example.com", "password": "hunter2"},
	})
	require.NoError(t, err)

	page := browsertest.NewPage()
	f := &fixture{
		page:   page,
		opener: browsertest.NewOpener(page),
		log:    logger.NewTestLogger(),
	}
	f.runner = &Runner{
		Open: f.opener.Open,
		Log:  f.log,
		Scenarios: scenario.Runner{
			Env: scenario.Env{Config: cfg, Settings: cfg.Settings()},
			Log: f.log,
			Timeouts: step.Timeouts{
				Element:    50 * time.Millisecond,
				Navigation: 50 * time.Millisecond,
				Response:   200 * time.Millisecond,
				Probe:      10 * time.Millisecond,
			},
		},
	}
	return f
}

func (f *fixture) allowLogin() {
	f.page.Add("testid:login-email-input", &browsertest.Element{Visible: true})
	f.page.Add("testid:login-password-input", &browsertest.Element{Visible: true})
	f.page.Add("testid:login-submit-button", &browsertest.Element{Visible: true})
	f.page.OnClick["testid:login-submit-button"] = func(p *browsertest.Page) {
		p.SetURL("http://console.test/console/dashboard")
	}
}

func fillScenario(name, target string, requiresLogin bool) *scenario.Scenario {
	return &scenario.Scenario{
		Name:          name,
		RequiresLogin: requiresLogin,
		Vars:          map[string]string{"machine": "m_${run.unique}"},
		Steps: []scenario.Step{
			{Action: scenario.ActionType, Name: "fill " + target, Selector: scenario.Selectors{target}, Value: "${vars.machine}"},
		},
	}
}

func TestRunner_SharesOneSessionAndLogsInOnce(t *testing.T) {
	f := newFixture(t)
	f.allowLogin()
	f.page.Add("testid:first", &browsertest.Element{Visible: true})
	f.page.Add("testid:second", &browsertest.Element{Visible: true})

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, []*scenario.Scenario{
		fillScenario("first", "testid:first", true),
		fillScenario("second", "testid:second", true),
	})
	require.NoError(t, err)
	require.True(t, rep.Passed(), "%v", rep.Err)
	assert.Equal(t, 0, rep.ExitCode())

	require.Len(t, rep.Reports, 3)
	assert.Equal(t, scenario.LoginScenarioName, rep.Reports[0].Scenario)
	for _, r := range rep.Reports[1:] {
		assert.Len(t, r.Steps, 1)
	}

	assert.Equal(t, 1, f.opener.Opened())
	assert.Equal(t, 1, f.opener.Closed())

	first := f.page.Element("testid:first").Value
	assert.True(t, strings.HasPrefix(first, "m_"), first)
	assert.Equal(t, first, f.page.Element("testid:second").Value)

	emails := 0
	for _, c := range f.page.Calls() {
		if c == "fill testid:login-email-input" {
			emails++
		}
	}
	assert.Equal(t, 1, emails)
}

func TestRunner_LoginThroughHeaderLinkDrivesPopup(t *testing.T) {
	cfg, err := config.FromMap(map[string]interface{}{
		"baseUrl":     "http://console.test",
		"credentials": map[string]interface{}{"email": "qa@example.com", "password": "hunter2"},
		"login":       map[string]interface{}{"useHeaderLink": true},
	})
	require.NoError(t, err)

	f := newFixture(t)
	f.runner.Scenarios.Env = scenario.Env{Config: cfg, Settings: cfg.Settings()}
	f.page.Add("role:link=|Login", &browsertest.Element{Visible: true})

	popup := browsertest.NewPage()
	popup.SetURL("http://console.test/console/login")
	popup.Add("testid:login-email-input", &browsertest.Element{Visible: true})
	popup.Add("testid:login-password-input", &browsertest.Element{Visible: true})
	popup.Add("testid:login-submit-button", &browsertest.Element{Visible: true})
	popup.Add("testid:machines-create-button", &browsertest.Element{Visible: true})
	popup.OnClick["testid:login-submit-button"] = func(p *browsertest.Page) {
		p.SetURL("http://console.test/console/dashboard")
	}
	f.page.Popup = popup

	create := &scenario.Scenario{
		Name:          "machines",
		RequiresLogin: true,
		Steps: []scenario.Step{
			{Action: scenario.ActionClick, Name: "create machine", Selector: scenario.Selectors{"testid:machines-create-button"}},
		},
	}

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, []*scenario.Scenario{create})
	require.NoError(t, err)
	require.True(t, rep.Passed(), "%v", rep.Err)
	require.Len(t, rep.Reports, 2)
	assert.True(t, rep.Reports[1].Passed())

	assert.Contains(t, popup.Calls(), "click testid:machines-create-button")
	assert.NotContains(t, f.page.Calls(), "click testid:machines-create-button")
	assert.Contains(t, f.page.Calls(), "expect_popup")
	assert.Equal(t, 1, f.opener.Opened())
	assert.Equal(t, 1, f.opener.Closed())
	assert.Equal(t, 0, popup.CloseCount())
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.page.Add("testid:third", &browsertest.Element{Visible: true})

	scs := []*scenario.Scenario{
		fillScenario("first", "testid:first", false),
		fillScenario("second", "testid:second", false),
		fillScenario("third", "testid:third", false),
	}

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, scs)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ExitCode())
	assert.ErrorIs(t, rep.Err, step.ErrElementNotFound)
	assert.Len(t, rep.Reports, 1)
	assert.Equal(t, []string{"second", "third"}, rep.Skipped)
	assert.Equal(t, 1, f.opener.Closed())
}

func TestRunner_ContinueOnFailure(t *testing.T) {
	f := newFixture(t)
	f.page.Add("testid:third", &browsertest.Element{Visible: true})

	scs := []*scenario.Scenario{
		fillScenario("first", "testid:first", false),
		fillScenario("third", "testid:third", false),
	}

	rep, err := f.runner.Run(context.Background(), Definition{Name: "tolerant", ContinueOnFailure: true}, scs)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ExitCode())
	require.Len(t, rep.Reports, 2)
	assert.False(t, rep.Reports[0].Passed())
	assert.True(t, rep.Reports[1].Passed())
	assert.Empty(t, rep.Skipped)
}

func TestRunner_LoginFailureSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.page.Add("testid:login-email-input", &browsertest.Element{Visible: true})

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, []*scenario.Scenario{
		fillScenario("first", "testid:first", true),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ExitCode())
	assert.Equal(t, []string{"first"}, rep.Skipped)
	require.Len(t, rep.Reports, 1)
	assert.Equal(t, scenario.LoginScenarioName, rep.Reports[0].Scenario)
	assert.Contains(t, f.log.Messages("error"), "suite login failed")
}

func TestRunner_CompileErrorOpensNoBrowser(t *testing.T) {
	f := newFixture(t)
	broken := &scenario.Scenario{Name: "broken", Steps: []scenario.Step{
		{Action: scenario.ActionType, Selector: scenario.Selectors{"testid:a"}, Value: "${vars.missing}"},
	}}

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, []*scenario.Scenario{
		fillScenario("first", "testid:first", false),
		broken,
	})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, scenario.ErrInvalidScenario)
	assert.Equal(t, 0, f.opener.Opened())
}

func TestRunner_OpenFailure(t *testing.T) {
	f := newFixture(t)
	f.opener.Err = errors.New("no driver")

	rep, err := f.runner.Run(context.Background(), Definition{Name: "smoke"}, []*scenario.Scenario{
		fillScenario("first", "testid:first", false),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, rep.Err, step.ErrUnexpectedFailure)
	assert.Equal(t, []string{"first"}, rep.Skipped)
}
