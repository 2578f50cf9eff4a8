package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Version is the current server version.
const Version = "0.1.0"

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where the chatbot stores its own data
	DSN string
	// Driver is the database driver (postgres, sqlite or memory)
	Driver string
	// Version is the current version of server
	Version string

	// Chat configuration
	OpenRouterAPIKey  string        // CHATBOT_OPENROUTER_API_KEY
	OpenRouterBaseURL string        // CHATBOT_OPENROUTER_BASE_URL (default: https://openrouter.ai/api/v1)
	ChatModel         string        // CHATBOT_CHAT_MODEL (default: google/gemma-3n-e2b-it:free)
	VisionModel       string        // CHATBOT_VISION_MODEL (default: meta-llama/llama-3.2-11b-vision-instruct:free)
	MaxTokens         int           // CHATBOT_MAX_TOKENS (default: 1000)
	Temperature       float32       // CHATBOT_TEMPERATURE (default: 0.7)
	HistoryWindow     int           // CHATBOT_HISTORY_WINDOW (default: 10)
	LLMTimeout        time.Duration // CHATBOT_LLM_TIMEOUT (default: 30s)

	// Upload processing configuration
	MaxUploadBytes     int64  // CHATBOT_MAX_UPLOAD_BYTES (default: 16MiB)
	TextExtractEnabled bool   // CHATBOT_TEXTEXTRACT_ENABLED (default: false)
	TikaServerURL      string // CHATBOT_TEXTEXTRACT_TIKA_URL (default: http://localhost:9998)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMConfigured returns true if an inference API key is present.
func (p *Profile) IsLLMConfigured() bool {
	return p.OpenRouterAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from CHATBOT_* environment variables.
func (p *Profile) FromEnv() {
	if dsn := os.Getenv("CHATBOT_DSN"); dsn != "" {
		p.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		// DATABASE_URL is what managed Postgres providers inject.
		p.DSN = dsn
	}
	if driver := os.Getenv("CHATBOT_DRIVER"); driver != "" {
		p.Driver = driver
	}

	p.OpenRouterAPIKey = getEnvOrDefault("CHATBOT_OPENROUTER_API_KEY", os.Getenv("OPENROUTER_API_KEY"))
	p.OpenRouterBaseURL = getEnvOrDefault("CHATBOT_OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	p.ChatModel = getEnvOrDefault("CHATBOT_CHAT_MODEL", "google/gemma-3n-e2b-it:free")
	p.VisionModel = getEnvOrDefault("CHATBOT_VISION_MODEL", "meta-llama/llama-3.2-11b-vision-instruct:free")
	p.MaxTokens = getIntEnvOrDefault("CHATBOT_MAX_TOKENS", 1000)
	p.HistoryWindow = getIntEnvOrDefault("CHATBOT_HISTORY_WINDOW", 10)
	p.Temperature = 0.7
	if value := os.Getenv("CHATBOT_TEMPERATURE"); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			p.Temperature = float32(f)
		}
	}
	p.LLMTimeout = 30 * time.Second
	if value := os.Getenv("CHATBOT_LLM_TIMEOUT"); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			p.LLMTimeout = d
		}
	}

	p.MaxUploadBytes = int64(getIntEnvOrDefault("CHATBOT_MAX_UPLOAD_BYTES", 16*1024*1024))
	p.TextExtractEnabled = os.Getenv("CHATBOT_TEXTEXTRACT_ENABLED") == "true"
	p.TikaServerURL = getEnvOrDefault("CHATBOT_TEXTEXTRACT_TIKA_URL", "http://localhost:9998")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "postgres", "sqlite", "memory", "":
	default:
		return errors.Errorf("unsupported driver %q: only 'postgres', 'sqlite' and 'memory' are supported", p.Driver)
	}
	if p.Driver == "" {
		// Postgres when a DSN is present, otherwise memory. The fallback
		// selector still downgrades postgres to memory when unreachable.
		if p.DSN != "" {
			p.Driver = "postgres"
		} else {
			p.Driver = "memory"
		}
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "chatbot")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/chatbot"
		}
	}

	if p.Driver == "sqlite" || p.Data != "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("chatbot_%s.db", p.Mode)
		p.DSN = filepath.Join(p.Data, dbFile)
	}

	return nil
}
