package configuration

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// LoadEnvFromFile exports KEY=VALUE pairs from the given dotenv files, in order, before
// viper reads the environment. Variables already set in the process win. Missing files
// are skipped.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		err := godotenv.Load(p)
		switch {
		case err == nil:
			logger.GetLogger().WithField("file", p).Debug("Loaded environment file")
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.GetLogger().WithFields(map[string]interface{}{"file": p, "error": err.Error()}).Warn("Skipping unreadable environment file")
		}
	}
}
