package config

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from dir. Existing process variables win.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err == nil {
			slog.Debug("Loaded environment variables", "path", path)
		}
	}
}
