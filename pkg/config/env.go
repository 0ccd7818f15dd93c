package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// placeholder matches ${VAR} references.
var placeholder = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// ExpandEnv replaces ${VAR} placeholders in data with environment values.
// A variable set to the empty string is substituted with a warning; an
// unset variable is an error.
func ExpandEnv(data []byte, source string, logger *zap.Logger) ([]byte, error) {
	var missing []string
	out := placeholder.ReplaceAllFunc(data, func(m []byte) []byte {
		k := string(placeholder.FindSubmatch(m)[1])
		val, ok := os.LookupEnv(k)
		if !ok {
			missing = append(missing, k)
			return m
		}
		if val == "" {
			logger.Warn("env variable is empty during config expansion",
				zap.String("file", source),
				zap.String("var", k))
		}
		return []byte(val)
	})

	if len(missing) > 0 {
		logger.Error("unresolved ${VAR} placeholders left after env expansion",
			zap.String("file", source),
			zap.Strings("vars", missing))
		return nil, fmt.Errorf("%s: unset environment variables: %s", source, strings.Join(missing, ", "))
	}
	return out, nil
}

// LoadDotEnv loads variables from .env-style files into the environment
// without overriding variables that are already set. Files that do not
// exist are skipped. With no arguments it loads ".env".
func LoadDotEnv(logger *zap.Logger, files ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			logger.Debug("env file not found, skipping", zap.String("file", file))
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		logger.Debug("loaded env file", zap.String("file", file))
	}
	return nil
}
