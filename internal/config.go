package internal

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"support-flow/domain"
	"time"
	"unicode/utf8"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH"`
	AgentHandle       string        `env:"AGENT_HANDLE,default=admin@test.com"`
	AgentID           string        `env:"AGENT_ID,default=ADMIN_ID"`
	TypingQuietPeriod time.Duration `env:"TYPING_QUIET_PERIOD,default=2s"`
	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=500ms"`
	RetryInitial      time.Duration `env:"RETRY_INITIAL_BACKOFF,default=200ms"`
	RetryMax          time.Duration `env:"RETRY_MAX_BACKOFF,default=10s"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=1m"`
	DebugPort         int           `env:"DEBUG_PORT,default=0"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	MaskCharacter     string        `env:"MASK_CHARACTER,default=*"`
}

// LoadConfig reads the optional .env files, then the environment.
// Variables already set in the environment win over the files.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !isMissing(err) {
			return Config{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.AgentID == "" || c.AgentHandle == "" {
		return fmt.Errorf("AGENT_ID and AGENT_HANDLE must not be empty")
	}
	if err := domain.UserID(c.AgentID).Validate(); err != nil {
		return fmt.Errorf("AGENT_ID: %w", err)
	}
	if c.TypingQuietPeriod <= 0 {
		return fmt.Errorf("TYPING_QUIET_PERIOD must be positive, got %s", c.TypingQuietPeriod)
	}
	if c.RetryInitial <= 0 || c.RetryMax < c.RetryInitial {
		return fmt.Errorf("RETRY_MAX_BACKOFF (%s) must be at least RETRY_INITIAL_BACKOFF (%s)", c.RetryMax, c.RetryInitial)
	}
	if c.CensoredWords != "" && utf8.RuneCountInString(c.MaskCharacter) != 1 {
		return fmt.Errorf("MASK_CHARACTER must be a single character, got %q", c.MaskCharacter)
	}
	return nil
}

// Mask is the rune written over masked words.
func (c Config) Mask() rune {
	r, _ := utf8.DecodeRuneInString(c.MaskCharacter)
	if r == utf8.RuneError {
		return '*'
	}
	return r
}

func isMissing(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
