package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// SamplerDefaults mirrors the AGENTIC_* and IMAGE_* environment variables:
// the generation parameters passed to the external inference engine on
// every request.
type SamplerDefaults struct {
	AgenticTemp                  float64
	AgenticTopP                  float64
	AgenticTopK                  int
	AgenticMinP                  float64
	AgenticRepetitionPenalty     float64
	AgenticRepetitionContextSize int
	AgenticMaxTokens             int
	AgenticMaxKVSize             int
	ImageMaxTokens               int
	ImageTemp                    float64
}

// Config is Vico's environment-variable-driven configuration.
type Config struct {
	ChatModelName    string
	AgenticModelName string
	ImageModelName   string

	Sampler SamplerDefaults

	AnthropicAPIKey string
	OpenAIAPIKey    string
	ArkAPIKey       string
	ArkBaseURL      string

	// ExtraInstructions is appended to internal/prompt's base Assembler
	// instructions, sourced from an optional JSONC overlay file.
	ExtraInstructions []string

	// MCPServers configures optional external Model Context Protocol
	// servers internal/mcp connects at startup, sourced from the same
	// overlay file.
	MCPServers map[string]MCPServerConfig
}

// MCPServerConfig mirrors internal/mcp.Config's JSON shape, kept here
// rather than importing internal/mcp directly to avoid a config<->mcp
// import cycle; cmd/vico/commands/serve.go translates one into the other.
type MCPServerConfig struct {
	Enabled     bool              `json:"enabled"`
	Type        string            `json:"type"` // "remote" | "local" | "stdio"
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// overlay is the shape of the optional JSONC config file: small,
// operator-editable tweaks that don't belong in environment variables.
type overlay struct {
	Instructions []string                   `json:"instructions"`
	MCP          map[string]MCPServerConfig `json:"mcp"`
}

// Load builds a Config from (in increasing precedence) an optional .env
// file, an optional JSONC overlay file, and the process environment.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables already set in the
	// environment, and a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		ChatModelName:    getEnv("CHAT_MODEL_NAME", "anthropic/claude-sonnet-4-20250514"),
		AgenticModelName: getEnv("AGENTIC_MODEL_NAME", "anthropic/claude-sonnet-4-20250514"),
		ImageModelName:   getEnv("IMAGE_MODEL_NAME", "anthropic/claude-sonnet-4-20250514"),
		Sampler: SamplerDefaults{
			AgenticTemp:                  getEnvFloat("AGENTIC_TEMP", 0.6),
			AgenticTopP:                  getEnvFloat("AGENTIC_TOP_P", 0.95),
			AgenticTopK:                  getEnvInt("AGENTIC_TOP_K", 20),
			AgenticMinP:                  getEnvFloat("AGENTIC_MIN_P", 0),
			AgenticRepetitionPenalty:     getEnvFloat("AGENTIC_REPETITION_PENALTY", 1.05),
			AgenticRepetitionContextSize: getEnvInt("AGENTIC_REPETITION_CONTEXT_SIZE", 64),
			AgenticMaxTokens:             getEnvInt("AGENTIC_MAX_TOKENS", 81920),
			AgenticMaxKVSize:             getEnvInt("AGENTIC_MAX_KV_SIZE", 256000),
			ImageMaxTokens:               getEnvInt("IMAGE_MAX_TOKENS", 100000),
			ImageTemp:                    getEnvFloat("IMAGE_TEMP", 0.7),
		},
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		ArkAPIKey:       os.Getenv("ARK_API_KEY"),
		ArkBaseURL:      os.Getenv("ARK_BASE_URL"),
	}

	overlayPath := getEnv("VICO_CONFIG", GetPaths().ConfigFile())
	if err := applyOverlay(cfg, overlayPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyOverlay reads an optional JSONC file of small operator tweaks. A
// missing file is not an error; a malformed one is.
func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var ov overlay
	if err := json.Unmarshal(jsonc.ToJSON(data), &ov); err != nil {
		return err
	}
	cfg.ExtraInstructions = ov.Instructions
	cfg.MCPServers = ov.MCP
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
