package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Index     IndexConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OpenAIConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dimensions int
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK int
}

type IndexConfig struct {
	MaxChunkChars int
	MaxChunks     int
	Workers       int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		OpenAI: OpenAIConfig{
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4o-mini",
			Dimensions: 1536,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Index: IndexConfig{
			MaxChunkChars: 900,
			MaxChunks:     6,
			Workers:       4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file in
// the working directory, and ASKFOLIO_* environment variables (highest
// precedence). A missing OpenAI key is not an error: the service runs
// on local fallbacks without one.
func Load() (Config, error) {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	// Conventional name used by most OpenAI tooling.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askfolio"
	}
	return filepath.Join(home, ".askfolio")
}
