package config

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// Config holds the settings of one splitter run
type Config struct {
	Delimiter         string
	OutputDir         string
	KeyMode           string
	Normalize         string
	LogLevel          string
	LogFormat         string
	ExitZeroOnFailure bool
	DBDriver          string
	DBDSN             string
	WebAddr           string
}

// FromEnv returns the defaults, overridden by SPLITTER_* variables
func FromEnv() Config {
	return Config{
		Delimiter:         GetEnv("SPLITTER_DELIMITER", ","),
		OutputDir:         GetEnv("SPLITTER_OUTPUT_DIR", DefaultOutputDir()),
		KeyMode:           GetEnv("SPLITTER_KEY_MODE", "concat"),
		Normalize:         GetEnv("SPLITTER_NORMALIZE", "none"),
		LogLevel:          GetEnv("SPLITTER_LOG_LEVEL", "debug"),
		LogFormat:         GetEnv("SPLITTER_LOG_FORMAT", "console"),
		ExitZeroOnFailure: GetEnvBool("SPLITTER_EXIT_ZERO_ON_FAILURE", false),
		DBDriver:          GetEnv("SPLITTER_DB_DRIVER", ""),
		DBDSN:             GetEnv("SPLITTER_DB_DSN", ""),
		WebAddr:           GetEnv("SPLITTER_WEB_ADDR", ":8080"),
	}
}

// DefaultOutputDir is the results directory next to the directory holding
// the executable, or ./results when the executable cannot be located
func DefaultOutputDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "results"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "..", "results")
}

// DelimiterRune returns the configured delimiter as a single rune
func (c Config) DelimiterRune() (rune, error) {
	if c.Delimiter == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return 0, xerrors.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, xerrors.Errorf("invalid delimiter %q", c.Delimiter)
	}
	return r, nil
}

// Validate checks the settings that are not checked by the components
// consuming them
func (c Config) Validate() error {
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return xerrors.New("output directory is empty")
	}
	if (c.DBDriver == "") != (c.DBDSN == "") {
		return xerrors.New("database driver and DSN must be set together")
	}
	return nil
}
