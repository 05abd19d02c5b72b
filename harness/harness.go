// Package harness wires configuration, logging, storage, run history and the
// browser into scenario and suite runs.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/database"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/metrics"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
	"github.com/hairizuan-noorazman/ui-harness/suite"
	"github.com/hairizuan-noorazman/ui-harness/testrun"
)

// ErrNoSuite is returned when a suite file holds several suites and none
// was named.
var ErrNoSuite = errors.New("suite name is required")

// Options describes one invocation.
type Options struct {
	// ConfigPath is searched first; see config.CandidatePaths.
	ConfigPath string

	// ScenarioPath is the scenario file for Run. Empty runs the built-in
	// login scenario.
	ScenarioPath string

	// SuitePath and SuiteName select the suite for RunSuite. SuiteName may be
	// empty when the file defines a single suite.
	SuitePath string
	SuiteName string

	// Vars override scenario vars.
	Vars map[string]string

	// Headed forces a visible browser regardless of configuration.
	Headed bool

	// LogOutput receives console logs. Defaults to os.Stdout.
	LogOutput io.Writer

	// Observers are notified in addition to the run history and metrics.
	Observers []scenario.Observer

	// Open replaces the playwright opener.
	Open browser.Opener
}

// BrowserOptions maps settings onto browser launch options.
func BrowserOptions(s config.Settings) browser.Options {
	return browser.Options{
		Browser:           s.Browser.Type,
		Headless:          s.Browser.Headless,
		SlowMo:            s.Browser.SlowMo,
		ViewportWidth:     s.Browser.ViewportWidth,
		ViewportHeight:    s.Browser.ViewportHeight,
		DefaultTimeout:    s.Timeouts.Default,
		NavigationTimeout: s.Timeouts.Navigation,
		VideoDir:          s.Browser.VideoDir,
		SkipInstall:       s.Browser.SkipInstall,
	}
}

// Timeouts maps settings onto step timeouts.
func Timeouts(s config.Settings) step.Timeouts {
	return step.Timeouts{
		Element:    s.Timeouts.Element,
		Navigation: s.Timeouts.Navigation,
		Response:   s.Timeouts.Response,
		Probe:      s.Timeouts.Probe,
	}
}

// LoadSettings loads and validates configuration. Nothing is started.
func LoadSettings(path string) (*config.Config, config.Settings, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, config.Settings{}, err
	}
	s := cfg.Settings()
	if err := s.Validate(); err != nil {
		return nil, config.Settings{}, err
	}
	return cfg, s, nil
}

// session holds everything built for one invocation.
type session struct {
	id       string
	cfg      *config.Config
	settings config.Settings
	log      *logger.LogrusLogger
	blobs    storage.BlobStorage
	db       *gorm.DB
	recorder *testrun.Recorder
	metrics  *metrics.Metrics
	open     browser.Opener
	opts     Options
}

func start(ctx context.Context, opts Options) (*session, error) {
	cfg, settings, err := LoadSettings(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Headed {
		settings.Browser.Headless = false
	}

	s := &session{
		id:       uuid.NewString(),
		cfg:      cfg,
		settings: settings,
		opts:     opts,
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	log, logErr := logger.New(logger.Options{
		Level:           settings.Logging.Level,
		Format:          settings.Logging.Format,
		Output:          out,
		Dir:             settings.Logging.Dir,
		SessionID:       s.id,
		SensitiveFields: settings.Logging.SensitiveFields,
	})
	s.log = log
	if logErr != nil {
		log.Warn(ctx, "session log file unavailable, logging to console only", map[string]interface{}{"error": logErr.Error()})
	}

	log.Info(ctx, "configuration loaded", map[string]interface{}{
		"path":     cfg.Path(),
		"base_url": settings.BaseURL,
		"browser":  settings.Browser.Type,
		"headless": settings.Browser.Headless,
	})

	s.blobs, err = storage.New(ctx, storage.Config{
		Type:          settings.Storage.Type,
		BaseDir:       settings.Screenshots.Path,
		S3Bucket:      settings.Storage.S3Bucket,
		S3Region:      settings.Storage.S3Region,
		S3Prefix:      settings.Storage.S3Prefix,
		PresignExpiry: settings.Storage.S3PresignExpiry,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
	}

	s.metrics, err = metrics.New()
	if err != nil {
		log.Close()
		return nil, err
	}

	if settings.Database.Enabled {
		if err := s.openHistory(ctx); err != nil {
			log.Warn(ctx, "run history disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	s.open = opts.Open
	if s.open == nil {
		s.open = browser.NewOpener(BrowserOptions(settings))
	}
	return s, nil
}

func (s *session) openHistory(ctx context.Context) error {
	db, err := database.Connect(database.ConfigFromSettings(s.settings.Database))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := database.RunMigrations(sqlDB, s.settings.Database.Driver); err != nil {
		sqlDB.Close()
		return err
	}
	s.db = db
	s.recorder = testrun.NewRecorder(
		testrun.NewSQLStore(db, s.log),
		testrun.NewSQLStepResultStore(db, s.log),
		testrun.NewSQLAssetStore(db, s.log),
		s.log,
	)
	return nil
}

func (s *session) runner() scenario.Runner {
	observers := []scenario.Observer{s.metrics}
	if s.recorder != nil {
		observers = append(observers, s.recorder)
	}
	observers = append(observers, s.opts.Observers...)

	return scenario.Runner{
		Open: s.open,
		Env: scenario.Env{
			Config:    s.cfg,
			Settings:  s.settings,
			Vars:      s.opts.Vars,
			LookupEnv: os.LookupEnv,
		},
		Log:                 s.log,
		Timeouts:            Timeouts(s.settings),
		Blobs:               s.blobs,
		SkipScreenshots:     !s.settings.Screenshots.Enabled,
		ScreenshotOnFailure: s.settings.Screenshots.OnFailure,
		DumpOnFailure:       s.settings.Screenshots.DumpOnFailure,
		FullPage:            s.settings.Screenshots.FullPage,
		LogPath:             s.log.LogPath(),
		SessionID:           s.id,
		Observers:           observers,
	}
}

// close releases the session. Failures are logged, never returned.
func (s *session) close(ctx context.Context) {
	var result *multierror.Error

	if path := s.settings.Metrics.Textfile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Err(); err != nil {
			result = multierror.Append(result, fmt.Errorf("run history incomplete: %w", err))
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		s.log.Warn(ctx, "session cleanup incomplete", map[string]interface{}{"error": err.Error()})
	}
	s.log.Close()
}

// Run executes one scenario, or the built-in login when no scenario path is
// given. Configuration and scenario errors are returned before any browser is
// opened.
func Run(ctx context.Context, opts Options) (*scenario.Report, error) {
	var sc *scenario.Scenario
	if opts.ScenarioPath != "" {
		loaded, err := scenario.Load(opts.ScenarioPath)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}

	s, err := start(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer s.close(ctx)

	if sc == nil {
		sc = scenario.Login(s.settings)
	}

	runner := s.runner()
	return runner.Run(ctx, sc)
}

// RunSuite executes a suite in one shared browser session.
func RunSuite(ctx context.Context, opts Options) (*suite.Report, error) {
	file, err := suite.Load(opts.SuitePath)
	if err != nil {
		return nil, err
	}

	name := opts.SuiteName
	if name == "" {
		names := file.Names()
		if len(names) != 1 {
			return nil, fmt.Errorf("%w: %s defines %v", ErrNoSuite, opts.SuitePath, names)
		}
		name = names[0]
	}
	def, err := file.Find(name)
	if err != nil {
		return nil, err
	}
	scenarios, err := file.LoadScenarios(def)
	if err != nil {
		return nil, err
	}

	s, err := start(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer s.close(ctx)

	r := &suite.Runner{
		Open:      s.open,
		Scenarios: s.runner(),
		Log:       s.log,
	}
	return r.Run(ctx, def, scenarios)
}

// Validate loads configuration and compiles the scenario without opening a
// browser.
func Validate(opts Options) (*scenario.Plan, error) {
	cfg, settings, err := LoadSettings(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	sc := scenario.Login(settings)
	if opts.ScenarioPath != "" {
		sc, err = scenario.Load(opts.ScenarioPath)
		if err != nil {
			return nil, err
		}
	}

	return scenario.Compile(sc, scenario.Env{
		Config:    cfg,
		Settings:  settings,
		RunID:     "validate",
		Unique:    "validate",
		Vars:      opts.Vars,
		LookupEnv: os.LookupEnv,
	})
}
