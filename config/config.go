// Package config loads the harness configuration document.
//
// The document is JSON. It is located by searching a fixed list of candidate
// paths, read once, and then exposed as an immutable *Config. Nested keys are
// addressed with dotted paths ("browser.viewport.width") through accessors
// that return the caller's default whenever the path is absent or holds a
// value of the wrong type.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/hairizuan-noorazman/ui-harness/secret"
)

const (
	// FileName is the document name looked up in each candidate directory.
	FileName = "config.json"

	// EnvPrefix prefixes environment overrides, e.g. UIHARNESS_BASEURL.
	EnvPrefix = "UIHARNESS"

	// SecretKeyEnv holds the passphrase used to decrypt enc: values.
	SecretKeyEnv = "UIHARNESS_SECRET_KEY"
)

var (
	// ErrConfigurationNotFound is returned when no candidate path holds a file.
	ErrConfigurationNotFound = errors.New("configuration not found")

	// ErrConfigurationParse is returned when the file is not valid JSON.
	ErrConfigurationParse = errors.New("configuration parse error")

	// ErrSecretKeyMissing is returned when an enc: value is present but no
	// passphrase is available to decrypt it.
	ErrSecretKeyMissing = errors.New("configuration has encrypted values but " + SecretKeyEnv + " is not set")
)

// Config is a loaded configuration document. It is never mutated after Load.
type Config struct {
	v    *viper.Viper
	path string
}

// CandidatePaths returns the locations searched for the document, in order:
// the explicit path, the executable's directory, its parent, and the working
// directory. An explicit directory is searched for FileName.
func CandidatePaths(explicit string) []string {
	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" {
			return
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	if explicit != "" {
		if info, err := os.Stat(explicit); err == nil && info.IsDir() {
			add(filepath.Join(explicit, FileName))
		} else {
			add(explicit)
		}
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		add(filepath.Join(dir, FileName))
		add(filepath.Join(filepath.Dir(dir), FileName))
	}

	if wd, err := os.Getwd(); err == nil {
		add(filepath.Join(wd, FileName))
	}

	return paths
}

// Load searches CandidatePaths(explicit) and loads the first file found.
func Load(explicit string) (*Config, error) {
	return LoadFrom(CandidatePaths(explicit))
}

// LoadFrom loads the first existing file among candidates.
func LoadFrom(candidates []string) (*Config, error) {
	for _, p := range candidates {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		return loadFile(p)
	}
	return nil, fmt.Errorf("%w: searched %s", ErrConfigurationNotFound, strings.Join(candidates, ", "))
}

func loadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigurationParse, path, err)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Env overrides are resolved once here so later reads see a fixed document.
	settings := v.AllSettings()
	if err := decryptValues(settings); err != nil {
		return nil, err
	}

	snapshot := viper.New()
	if err := snapshot.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationParse, err)
	}

	return &Config{v: snapshot, path: path}, nil
}

// FromMap builds a Config from an in-memory document.
func FromMap(doc map[string]interface{}) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := v.MergeConfigMap(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationParse, err)
	}

	settings := v.AllSettings()
	if err := decryptValues(settings); err != nil {
		return nil, err
	}

	snapshot := viper.New()
	if err := snapshot.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationParse, err)
	}
	return &Config{v: snapshot}, nil
}

func decryptValues(doc map[string]interface{}) error {
	var key *secret.Key
	var walk func(m map[string]interface{}, prefix string) error
	walk = func(m map[string]interface{}, prefix string) error {
		for k, val := range m {
			switch typed := val.(type) {
			case map[string]interface{}:
				if err := walk(typed, prefix+k+"."); err != nil {
					return err
				}
			case string:
				if !secret.IsEncrypted(typed) {
					continue
				}
				if key == nil {
					passphrase := os.Getenv(SecretKeyEnv)
					if passphrase == "" {
						return ErrSecretKeyMissing
					}
					derived, err := secret.DeriveKey(passphrase)
					if err != nil {
						return err
					}
					key = derived
				}
				plain, err := secret.Decrypt(key, typed)
				if err != nil {
					return fmt.Errorf("failed to decrypt %s%s: %w", prefix, k, err)
				}
				m[k] = plain
			}
		}
		return nil
	}
	return walk(doc, "")
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Has reports whether the key path is present.
func (c *Config) Has(key string) bool {
	return c.v.IsSet(key)
}

// Get returns the raw value at key path.
func (c *Config) Get(key string) (interface{}, bool) {
	if !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.Get(key), true
}

// GetString returns the string at key path, or def.
func (c *Config) GetString(key, def string) string {
	val, ok := c.Get(key)
	if !ok {
		return def
	}
	s, err := cast.ToStringE(val)
	if err != nil {
		return def
	}
	return s
}

// GetInt returns the integer at key path, or def.
func (c *Config) GetInt(key string, def int) int {
	val, ok := c.Get(key)
	if !ok {
		return def
	}
	i, err := cast.ToIntE(val)
	if err != nil {
		return def
	}
	return i
}

// GetBool returns the boolean at key path, or def.
func (c *Config) GetBool(key string, def bool) bool {
	val, ok := c.Get(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(val)
	if err != nil {
		return def
	}
	return b
}

// GetDuration returns the duration at key path, or def. Numbers are
// milliseconds; strings may be either a Go duration ("30s") or milliseconds.
func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	val, ok := c.Get(key)
	if !ok {
		return def
	}

	if s, isString := val.(string); isString {
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(ms * float64(time.Millisecond))
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return def
		}
		return d
	}

	ms, err := cast.ToFloat64E(val)
	if err != nil {
		return def
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// GetStringSlice returns the list at key path, or def. A single string is
// returned as a one-element list.
func (c *Config) GetStringSlice(key string, def []string) []string {
	val, ok := c.Get(key)
	if !ok {
		return def
	}
	if s, isString := val.(string); isString {
		return []string{s}
	}
	out, err := cast.ToStringSliceE(val)
	if err != nil {
		return def
	}
	return out
}

// GetStringMap returns a copy of the object at key path, or nil.
func (c *Config) GetStringMap(key string) map[string]interface{} {
	val, ok := c.Get(key)
	if !ok {
		return nil
	}
	m, err := cast.ToStringMapE(val)
	if err != nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Selector returns the raw selector definition stored under selectors.<name>.
func (c *Config) Selector(name string) (interface{}, bool) {
	return c.Get("selectors." + name)
}

// AllSettings returns a copy of the whole document with defaults applied.
func (c *Config) AllSettings() map[string]interface{} {
	return c.v.AllSettings()
}
