package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const prefix = "XLSTREAM_"

// Config holds the settings of the command line tool.
type Config struct {
	LogFile    string
	LogLevel   string
	Options    string
	TempDir    string
	Culture    string
	FastMode   bool
	BufferSize int
}

// Load reads the environment, after loading the given dotenv files (or
// .env in the working directory). Missing files are ignored.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	cfg := Config{
		LogFile:    getEnvString("LOG_FILE", ""),
		LogLevel:   getEnvString("LOG_LEVEL", "warn"),
		Options:    getEnvString("OPTIONS", ""),
		TempDir:    getEnvString("TEMP_DIR", ""),
		Culture:    getEnvString("CULTURE", ""),
		FastMode:   getEnvBool("FAST_MODE", false),
		BufferSize: getEnvInt("BUFFER_SIZE", 0),
	}
	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(prefix + key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(prefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(prefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
