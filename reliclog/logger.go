package reliclog

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DEVELOPMENT string = "development"
	TESTING     string = "testing"
	STAGING     string = "staging"
	PRODUCTION  string = "production"
)

// NamedLogger returns a child logger tagged with a component name
func NamedLogger(logger *zerolog.Logger, name string) *zerolog.Logger {
	log := logger.With().Str("name", name).Logger()
	return &log
}

// New builds the root logger for the service; outside development it logs
// at info with a compact console format
func New(environment string) *zerolog.Logger {
	output := zerolog.NewConsoleWriter()

	if environment != DEVELOPMENT {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		output.TimeFormat = time.RFC3339

		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		output.FormatMessage = func(i interface{}) string {
			if i == nil {
				return "no msg"
			}
			return fmt.Sprintf("%s", i)
		}
	} else {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	log := zerolog.New(output).With().Timestamp().Logger()
	return &log
}
