// Package config loads the YAML configuration file, applies SPAMDETECT_*
// environment overrides and fills defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const EnvPrefix = "SPAMDETECT_"

type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Progress  ProgressConfig  `yaml:"progress"`
	Database  DatabaseConfig  `yaml:"database"`
	Http      HttpConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`

	// path the file was read from, empty when only defaults apply
	source string
}

type ArtifactsConfig struct {
	ModelType      string `yaml:"model_type"`
	ModelPath      string `yaml:"model_path"`
	VectorizerPath string `yaml:"vectorizer_path"`
	CacheSize      int    `yaml:"cache_size"`
	Watch          bool   `yaml:"watch"`
}

type ProgressConfig struct {
	FinalizeDelay time.Duration `yaml:"finalize_delay"`
	RowYield      time.Duration `yaml:"row_yield"`
}

// DatabaseConfig.Path empty disables prediction history.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HttpConfig.BatchDir confines the input paths POST /api/batch accepts.
type HttpConfig struct {
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
	BatchDir string        `yaml:"batch_dir"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type UIConfig struct {
	Theme string `yaml:"theme"`
}

func Default() *Config {
	return &Config{
		Artifacts: ArtifactsConfig{
			ModelType:      "logistic_regression",
			ModelPath:      "models/logistic_regression_model.json",
			VectorizerPath: "models/preprocessed_data_full.json",
			CacheSize:      4,
			Watch:          true,
		},
		Progress: ProgressConfig{
			FinalizeDelay: 300 * time.Millisecond,
			RowYield:      2 * time.Millisecond,
		},
		Database: DatabaseConfig{Path: "data/history.db"},
		Http:     HttpConfig{Port: 8080, Timeout: 30 * time.Second, BatchDir: "data/batch"},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{Theme: "light"},
	}
}

// Load reads path on top of the defaults. When path does not exist it tries
// ../<base> so commands run from cmd/ still find the root file; when neither
// exists the defaults are used. A .env file next to the working directory is
// loaded first and environment overrides are applied last.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	resolved, err := resolve(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		if err := cfg.decodeFile(resolved); err != nil {
			return nil, err
		}
		cfg.source = resolved
		cfg.relativeTo(filepath.Dir(resolved))
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Source is the file the config was read from, or "".
func (c *Config) Source() string {
	return c.source
}

func (c *Config) Validate() error {
	var errs []error
	if c.Artifacts.ModelPath == "" {
		errs = append(errs, errors.New("artifacts.model_path is required"))
	}
	if c.Artifacts.VectorizerPath == "" {
		errs = append(errs, errors.New("artifacts.vectorizer_path is required"))
	}
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Progress.FinalizeDelay < 0 || c.Progress.RowYield < 0 {
		errs = append(errs, errors.New("progress delays must not be negative"))
	}
	return errors.Join(errs...)
}

func resolve(path string) (string, error) {
	if path == "" {
		path = "config.yaml"
	}
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = append(candidates, filepath.Join("..", path))
	}
	for _, candidate := range candidates {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// relativeTo anchors relative file paths at dir, the directory of the
// config file.
func (c *Config) relativeTo(dir string) {
	if dir == "." || dir == "" {
		return
	}
	for _, p := range []*string{&c.Artifacts.ModelPath, &c.Artifacts.VectorizerPath, &c.Database.Path, &c.Log.File, &c.Http.BatchDir} {
		if *p != "" && !filepath.IsAbs(*p) && *p != ":memory:" {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ARTIFACTS_MODEL_TYPE":      &c.Artifacts.ModelType,
		"ARTIFACTS_MODEL_PATH":      &c.Artifacts.ModelPath,
		"ARTIFACTS_VECTORIZER_PATH": &c.Artifacts.VectorizerPath,
		"DATABASE_PATH":             &c.Database.Path,
		"HTTP_BATCH_DIR":            &c.Http.BatchDir,
		"LOG_LEVEL":                 &c.Log.Level,
		"LOG_FORMAT":                &c.Log.Format,
		"LOG_FILE":                  &c.Log.File,
		"UI_THEME":                  &c.UI.Theme,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ARTIFACTS_CACHE_SIZE": &c.Artifacts.CacheSize,
		"HTTP_PORT":            &c.Http.Port,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"PROGRESS_FINALIZE_DELAY": &c.Progress.FinalizeDelay,
		"PROGRESS_ROW_YIELD":      &c.Progress.RowYield,
		"HTTP_TIMEOUT":            &c.Http.Timeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup(EnvPrefix + "ARTIFACTS_WATCH"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sARTIFACTS_WATCH: %w", EnvPrefix, err)
		}
		c.Artifacts.Watch = b
	}
	return nil
}
