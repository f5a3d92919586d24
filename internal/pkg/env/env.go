package env

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file it finds. Without one the process
// environment is used as is.
func SetupEnvFile() {
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/coachdesk to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			log.Infof("[Env] Loaded %s", envFile)
			return
		}
	}

	Env = map[string]string{}
	log.Warn("[Env] No .env file found, using process environment")
}

// Merged returns the process environment overlaid with the loaded .env values.
func Merged() map[string]string {
	out := make(map[string]string, len(Env))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	for k, v := range Env {
		out[k] = v
	}
	return out
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
