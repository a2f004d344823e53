package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DATA_DIR keeps the stores between runs, a temp dir is used when empty
	DataDir string `envconfig:"E2E_DATA_DIR"`
	// E2E_TYPING_QUIET_PERIOD shortens the typing window so scenarios run on the real clock
	TypingQuietPeriod time.Duration `envconfig:"E2E_TYPING_QUIET_PERIOD" default:"300ms"`
	// E2E_TIMEOUT bounds every wait for a delivery
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"5s"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours   bool   `envconfig:"E2E_COLOURS" default:"true"`
	LogLevel  string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
	AgentID   string `envconfig:"E2E_AGENT_ID" default:"agent-1"`
	AgentMail string `envconfig:"E2E_AGENT_HANDLE" default:"admin@test.com"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
