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

// Config groups every setting read from the environment.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Client ClientConfig
	Voice  VoiceConfig
	Log    LogConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Speech: speech,
		Client: client,
		Voice:  loadVoiceConfig(),
		Log:    loadLogConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener of the companion API.
type ServerConfig struct {
	Addr            string
	FrontendOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	origins := splitList(getEnvOrDefault("FRONTEND_ORIGINS", "http://localhost:3000"))

	if strings.Contains(port, ":") {
		// Accept ":8000" or "127.0.0.1:8000" as-is.
		return ServerConfig{Addr: port, FrontendOrigins: origins}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, FrontendOrigins: origins}, nil
}

// AIConfig describes the Ark chat model behind reply generation.
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	PersonaID    string
	HistoryLimit int
}

// Enabled reports whether enough credentials are present to call the model.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		PersonaID:    getEnvOrDefault("AI_PERSONA", "nova"),
		HistoryLimit: historyLimit,
	}, nil
}

// SpeechConfig describes the Volcengine transcription service.
type SpeechConfig struct {
	AppID       string
	AccessToken string
	ResourceID  string
	Endpoint    string
	Language    string
	Timeout     time.Duration
	Enabled     bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		ResourceID:  getEnvOrDefault("SPEECH_RESOURCE_ID", ""),
		Endpoint:    getEnvOrDefault("SPEECH_ENDPOINT", ""),
		Language:    getEnvOrDefault("SPEECH_LANGUAGE", "ko-KR"),
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
		Enabled:     enabled && appID != "" && accessToken != "",
	}, nil
}

// ClientConfig describes how the companion client reaches the API.
type ClientConfig struct {
	BackendURL     string
	RequestTimeout time.Duration
	TalkDuration   time.Duration
}

func loadClientConfig() (ClientConfig, error) {
	timeout, err := parseOptionalIntEnv("COMPANION_REQUEST_TIMEOUT")
	if err != nil {
		return ClientConfig{}, err
	}
	requestTimeout := 60 * time.Second
	if timeout != nil && *timeout > 0 {
		requestTimeout = time.Duration(*timeout) * time.Second
	}

	talk, err := parseOptionalIntEnv("COMPANION_TALK_DEFAULT_MS")
	if err != nil {
		return ClientConfig{}, err
	}
	var talkDuration time.Duration
	if talk != nil && *talk > 0 {
		talkDuration = time.Duration(*talk) * time.Millisecond
	}

	return ClientConfig{
		BackendURL:     strings.TrimSpace(os.Getenv("COMPANION_BACKEND_URL")),
		RequestTimeout: requestTimeout,
		TalkDuration:   talkDuration,
	}, nil
}

// VoiceConfig names the local programs used for capture, synthesis and video.
// Commands are split on whitespace; an empty value selects the built-in default.
type VoiceConfig struct {
	RecordCommand []string
	TTSCommand    []string
	TTSLanguage   string
	VideoCommand  []string
	VideoDir      string
}

func loadVoiceConfig() VoiceConfig {
	return VoiceConfig{
		RecordCommand: strings.Fields(os.Getenv("COMPANION_RECORD_CMD")),
		TTSCommand:    strings.Fields(os.Getenv("COMPANION_TTS_CMD")),
		TTSLanguage:   getEnvOrDefault("COMPANION_TTS_LANG", "ko-KR"),
		VideoCommand:  strings.Fields(os.Getenv("COMPANION_VIDEO_CMD")),
		VideoDir:      getEnvOrDefault("COMPANION_VIDEO_DIR", "public"),
	}
}

// LogConfig selects logrus level, format and destination.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "text"),
		File:   strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
