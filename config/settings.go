package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid configuration")

// Settings is the typed view of the document used to bootstrap a run.
type Settings struct {
	BaseURL     string
	Browser     BrowserSettings
	Credentials CredentialSettings
	Login       LoginSettings
	Timeouts    TimeoutSettings
	Screenshots ScreenshotSettings
	Logging     LogSettings
	Storage     StorageSettings
	Database    DatabaseSettings
	Metrics     MetricsSettings
	Server      ServerSettings
}

// BrowserSettings controls the browser process and page.
type BrowserSettings struct {
	Type           string // "chromium", "firefox" or "webkit"
	Headless       bool
	SlowMo         time.Duration
	ViewportWidth  int
	ViewportHeight int
	SkipInstall    bool
	VideoDir       string
}

// CredentialSettings holds the console login.
type CredentialSettings struct {
	Email    string
	Password string
}

// LoginSettings describes how the login page is reached and when it succeeded.
type LoginSettings struct {
	EntryPath     string // page holding the header login link
	Path          string // direct login page
	UseHeaderLink bool   // open login through the header link popup
	LinkText      string
	DashboardURL  string // urlmatch pattern
	ErrorSelector string

	// ResponsePattern, when set, is awaited while the submit button is
	// clicked.
	ResponsePattern string
}

// TimeoutSettings are the explicit bounds on every wait.
type TimeoutSettings struct {
	Default    time.Duration
	Element    time.Duration
	Navigation time.Duration
	Response   time.Duration
	Probe      time.Duration
}

// ScreenshotSettings controls screenshot capture.
type ScreenshotSettings struct {
	Enabled   bool
	Path      string
	FullPage  bool
	OnFailure bool
	// DumpOnFailure stores a JSON dump of the page next to the failure
	// screenshot.
	DumpOnFailure bool
}

// LogSettings controls the structured logger.
type LogSettings struct {
	Level           string
	Format          string
	Dir             string
	SensitiveFields []string
}

// StorageSettings selects where artifacts are kept.
type StorageSettings struct {
	Type            string // "local" or "s3"
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	S3PresignExpiry time.Duration
}

// DatabaseSettings configures run history.
type DatabaseSettings struct {
	Enabled  bool
	Driver   string // "sqlite" or "mysql"
	Path     string // sqlite file
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// MetricsSettings configures metrics export.
type MetricsSettings struct {
	Textfile string
}

// ServerSettings configures the report server.
type ServerSettings struct {
	Host string
	Port int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("baseurl", "http://localhost:7322")

	v.SetDefault("browser.type", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slowmo", 0)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.skipinstall", false)
	v.SetDefault("browser.videodir", "")

	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")

	v.SetDefault("login.entrypath", "/en")
	v.SetDefault("login.path", "/console/login")
	v.SetDefault("login.useheaderlink", false)
	v.SetDefault("login.linktext", "Login")
	v.SetDefault("login.dashboardurl", "**/console/dashboard")
	v.SetDefault("login.errorselector", "")
	v.SetDefault("login.responsepattern", "")

	v.SetDefault("timeouts.default", 10000)
	v.SetDefault("timeouts.element", 10000)
	v.SetDefault("timeouts.navigation", 30000)
	v.SetDefault("timeouts.response", 30000)
	v.SetDefault("timeouts.probe", 1000)

	v.SetDefault("screenshots.enabled", true)
	v.SetDefault("screenshots.path", "./screenshots")
	v.SetDefault("screenshots.fullpage", true)
	v.SetDefault("screenshots.onfailure", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.dir", "./logs")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.s3bucket", "")
	v.SetDefault("storage.s3region", "us-east-1")
	v.SetDefault("storage.s3prefix", "")
	v.SetDefault("storage.s3presignexpiry", "15m")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./uiharness.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "ui_harness")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8089)
}

// Settings parses the typed view of the document.
func (c *Config) Settings() Settings {
	var s Settings

	s.BaseURL = strings.TrimRight(c.GetString("baseUrl", ""), "/")

	s.Browser.Type = strings.ToLower(c.GetString("browser.type", "chromium"))
	s.Browser.Headless = c.GetBool("browser.headless", true)
	s.Browser.SlowMo = c.GetDuration("browser.slowMo", 0)
	s.Browser.ViewportWidth = c.GetInt("browser.viewport.width", 1280)
	s.Browser.ViewportHeight = c.GetInt("browser.viewport.height", 720)
	s.Browser.SkipInstall = c.GetBool("browser.skipInstall", false)
	s.Browser.VideoDir = c.GetString("browser.videoDir", "")

	s.Credentials.Email = c.GetString("credentials.email", "")
	s.Credentials.Password = c.GetString("credentials.password", "")

	s.Login.EntryPath = c.GetString("login.entryPath", "/en")
	s.Login.Path = c.GetString("login.path", "/console/login")
	s.Login.UseHeaderLink = c.GetBool("login.useHeaderLink", false)
	s.Login.LinkText = c.GetString("login.linkText", "Login")
	s.Login.DashboardURL = c.GetString("login.dashboardUrl", "**/console/dashboard")
	s.Login.ErrorSelector = c.GetString("login.errorSelector", "")
	s.Login.ResponsePattern = c.GetString("login.responsePattern", "")

	s.Timeouts.Default = c.GetDuration("timeouts.default", 10*time.Second)
	s.Timeouts.Element = c.GetDuration("timeouts.element", 10*time.Second)
	s.Timeouts.Navigation = c.GetDuration("timeouts.navigation", 30*time.Second)
	s.Timeouts.Response = c.GetDuration("timeouts.response", 30*time.Second)
	s.Timeouts.Probe = c.GetDuration("timeouts.probe", time.Second)

	s.Screenshots.Enabled = c.GetBool("screenshots.enabled", true)
	s.Screenshots.Path = c.GetString("screenshots.path", "./screenshots")
	s.Screenshots.FullPage = c.GetBool("screenshots.fullPage", true)
	s.Screenshots.OnFailure = c.GetBool("screenshots.onFailure", true)
	s.Screenshots.DumpOnFailure = c.GetBool("screenshots.dumpOnFailure", true)

	s.Logging.Level = c.GetString("logging.level", "info")
	s.Logging.Format = c.GetString("logging.format", "text")
	s.Logging.Dir = c.GetString("logging.dir", "./logs")
	s.Logging.SensitiveFields = mergeFields(
		c.GetStringSlice("logging.sensitiveFields", nil),
		c.GetStringSlice("logging.filters.sanitize_fields", nil),
	)

	s.Storage.Type = c.GetString("storage.type", "local")
	s.Storage.S3Bucket = c.GetString("storage.s3Bucket", "")
	s.Storage.S3Region = c.GetString("storage.s3Region", "us-east-1")
	s.Storage.S3Prefix = c.GetString("storage.s3Prefix", "")
	s.Storage.S3PresignExpiry = c.GetDuration("storage.s3PresignExpiry", 15*time.Minute)

	s.Database.Enabled = c.GetBool("database.enabled", true)
	s.Database.Driver = c.GetString("database.driver", "sqlite")
	s.Database.Path = c.GetString("database.path", "./uiharness.db")
	s.Database.Host = c.GetString("database.host", "localhost")
	s.Database.Port = c.GetInt("database.port", 3306)
	s.Database.User = c.GetString("database.user", "root")
	s.Database.Password = c.GetString("database.password", "")
	s.Database.Name = c.GetString("database.name", "ui_harness")

	s.Metrics.Textfile = c.GetString("metrics.textfile", "")

	s.Server.Host = c.GetString("server.host", "127.0.0.1")
	s.Server.Port = c.GetInt("server.port", 8089)

	return s
}

// Validate checks the settings needed before any browser is launched.
func (s Settings) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if s.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: baseUrl %q is not an absolute URL", ErrInvalidSettings, s.BaseURL)
	}

	switch s.Browser.Type {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("%w: unsupported browser.type %q", ErrInvalidSettings, s.Browser.Type)
	}

	if s.Browser.ViewportWidth <= 0 || s.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("%w: viewport must be positive", ErrInvalidSettings)
	}

	for name, d := range map[string]time.Duration{
		"timeouts.element":    s.Timeouts.Element,
		"timeouts.navigation": s.Timeouts.Navigation,
		"timeouts.response":   s.Timeouts.Response,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidSettings, name)
		}
	}

	switch s.Storage.Type {
	case "local":
	case "s3":
		if s.Storage.S3Bucket == "" {
			return fmt.Errorf("%w: storage.s3Bucket is required for s3 storage", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unsupported storage.type %q", ErrInvalidSettings, s.Storage.Type)
	}

	switch s.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", ErrInvalidSettings, s.Database.Driver)
	}

	return nil
}

// URL resolves path against BaseURL. Absolute URLs are returned unchanged.
func (s Settings) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return s.BaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.BaseURL + path
}

// mergeFields joins field lists, dropping blanks and repeats.
func mergeFields(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, f := range list {
			f = strings.TrimSpace(f)
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
