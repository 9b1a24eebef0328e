package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates everything both services read from the environment.
type Config struct {
	Server   ServerConfig
	Model    ModelConfig
	Agent    AgentConfig
	Gateway  GatewayConfig
	LogLevel string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// ModelConfig holds the language-model credentials and knobs.
type ModelConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	MaxTokens int
}

// AgentConfig holds the agent-service specific knobs.
type AgentConfig struct {
	HistoryLimit       int
	EventsContextLimit int
	WebhookTimeout     time.Duration
	RedisAddr          string
	TracingEnabled     bool
}

// GatewayConfig holds the gateway-service specific knobs.
type GatewayConfig struct {
	AgentURL       string
	WebhookBaseURL string
	StorePath      string
	SessionTTL     time.Duration
	ProxyTimeout   time.Duration
	StreamTimeout  time.Duration
}

// Load reads the full configuration. defaultPort is service-specific: the
// agent listens on 5001, the gateway on 5000.
func Load(defaultPort string) (*Config, error) {
	server, err := loadServerConfig(defaultPort)
	if err != nil {
		return nil, err
	}

	maxTokens, err := parseIntEnv("ARK_MAX_TOKENS", 1024)
	if err != nil {
		return nil, err
	}
	historyLimit, err := parseIntEnv("HISTORY_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	eventsLimit, err := parseIntEnv("EVENTS_CONTEXT_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	webhookTimeout, err := parseDurationEnv("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDurationEnv("SESSION_TTL", 0)
	if err != nil {
		return nil, err
	}
	proxyTimeout, err := parseDurationEnv("PROXY_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	streamTimeout, err := parseDurationEnv("STREAM_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	tracing, err := parseBoolEnv("TRACING_ENABLED", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Model: ModelConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
			MaxTokens: maxTokens,
		},
		Agent: AgentConfig{
			HistoryLimit:       historyLimit,
			EventsContextLimit: eventsLimit,
			WebhookTimeout:     webhookTimeout,
			RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			TracingEnabled:     tracing,
		},
		Gateway: GatewayConfig{
			AgentURL:       getEnvOrDefault("AGENT_SERVICE_URL", "http://agent.real-time-agents.svc.cluster.local"),
			WebhookBaseURL: strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL")),
			StorePath:      strings.TrimSpace(os.Getenv("STORE_PATH")),
			SessionTTL:     sessionTTL,
			ProxyTimeout:   proxyTimeout,
			StreamTimeout:  streamTimeout,
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

func loadServerConfig(defaultPort string) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = defaultPort
	}

	if strings.Contains(port, ":") {
		// Accept ":5001" or "127.0.0.1:5001" verbatim.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

// Enabled reports whether the required model credentials are present.
func (c ModelConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark-backed chat model from this configuration.
func (c ModelConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("model credentials missing: set MODEL plus ARK_API_KEY or the ARK_ACCESS_KEY/ARK_SECRET_KEY pair")
	}

	maxTokens := c.MaxTokens
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		MaxTokens: &maxTokens,
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
