package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL     = "http://localhost:9090"
	DefaultOutput      = "demo/recording/flagd-ui-demo.gif"
	DefaultWorkDir     = "demo/recording/raw"
	DefaultWaitTimeout = 30 * time.Second
)

// Config holds one recording run. Flags are applied on top of FromEnv.
type Config struct {
	BaseURL string
	// OutputPath ending in .webm keeps the raw capture; anything else is
	// transcoded to GIF.
	OutputPath string
	WorkDir    string
	// ScriptPath replaces the built-in choreography when set.
	ScriptPath         string
	GenerateScriptPath string
	Strict             bool
	ChromePath         string
	Headless           bool
	WaitTimeout        time.Duration
	FFmpeg             string
	ShowStats          bool
	BuildVersion       string
}

func Default() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		OutputPath:  DefaultOutput,
		WorkDir:     DefaultWorkDir,
		Headless:    true,
		WaitTimeout: DefaultWaitTimeout,
		FFmpeg:      "ffmpeg",
	}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv applies environment overrides to the defaults. lookup is usually
// os.LookupEnv; empty values are ignored.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := get("OUTPUT"); ok {
		cfg.OutputPath = v
	}
	if v, ok := get("DEMO_WORK_DIR"); ok {
		cfg.WorkDir = v
	}
	if v, ok := get("DEMO_SCRIPT"); ok {
		cfg.ScriptPath = v
	}
	if v, ok := get("CHROME_PATH"); ok {
		cfg.ChromePath = v
	}

	var errs []error
	boolVar := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	boolVar("DEMO_STRICT", &cfg.Strict)
	boolVar("DEMO_HEADLESS", &cfg.Headless)
	boolVar("DEMO_STATS", &cfg.ShowStats)

	if v, ok := get("DEMO_WAIT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DEMO_WAIT_TIMEOUT: %w", err))
		} else {
			cfg.WaitTimeout = d
		}
	}
	return cfg, errors.Join(errs...)
}

// Load reads .env from the working directory and then the environment.
func Load() (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Default(), fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if c.OutputPath == "" {
		return errors.New("output path is required")
	}
	if c.WorkDir == "" {
		return errors.New("work directory is required")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive, got %s", c.WaitTimeout)
	}
	return nil
}
