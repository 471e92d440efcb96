package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"

	ReportModeTemplate = "template"
	ReportModeLLM      = "llm"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	DataDir    string `json:"data_dir"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	Debug      bool   `json:"debug"`

	// Language model
	LLMProvider   string `json:"llm_provider"`
	ChatModel     string `json:"chat_model"`
	BackendURL    string `json:"backend_url"`
	MaxTokens     int    `json:"max_tokens"`
	AgentMaxSteps int    `json:"agent_max_steps"`

	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	GeminiAPIKey   string `json:"gemini_api_key"`

	// Reddit
	RedditClientID  string `json:"reddit_client_id"`
	RedditSecret    string `json:"reddit_secret"`
	RedditUserAgent string `json:"reddit_user_agent"`
	RedditBaseURL   string `json:"reddit_base_url"`
	RedditOAuthURL  string `json:"reddit_oauth_url"`
	RedditAuthURL   string `json:"reddit_auth_url"`
	RedditRetries   int    `json:"reddit_retries"`

	// Solution and history store
	DatabaseType string `json:"database_type"`
	DatabaseURL  string `json:"database_url"`
	DatabaseName string `json:"database_name"`

	// HTTP surface
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`

	RequestTimeoutSeconds  int `json:"request_timeout_seconds"`
	WorkflowTimeoutSeconds int `json:"workflow_timeout_seconds"`

	ReportMode     string `json:"report_mode"`
	ReportCurrency string `json:"report_currency"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults rooted at dir, without
// consulting the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir: dir,
		DataDir:    filepath.Join(dir, "data"),
		LogLevel:   "info",
		LogFormat:  "text",

		LLMProvider:   ProviderDeepSeek,
		ChatModel:     "deepseek-chat",
		MaxTokens:     4096,
		AgentMaxSteps: 12,

		RedditUserAgent: "RedditAnalysisSaaS/1.0",
		RedditBaseURL:   "https://www.reddit.com",
		RedditOAuthURL:  "https://oauth.reddit.com",
		RedditAuthURL:   "https://www.reddit.com/api/v1/access_token",
		RedditRetries:   2,

		DatabaseType: DatabaseSQLite,
		DatabaseName: "painradar",

		Host:           "0.0.0.0",
		Port:           8000,
		AllowedOrigins: []string{"*"},

		RequestTimeoutSeconds:  60,
		WorkflowTimeoutSeconds: 600,

		ReportMode:     ReportModeTemplate,
		ReportCurrency: "EUR",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}
	if val := os.Getenv("PAINRADAR_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("CHAT_MODEL"); val != "" {
		c.ChatModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}
	if val := os.Getenv("AGENT_MAX_STEPS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AgentMaxSteps = v
		}
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("GEMINI_API_KEY"); val != "" {
		c.GeminiAPIKey = val
	}

	if val := os.Getenv("REDDIT_CLIENT_ID"); val != "" {
		c.RedditClientID = val
	}
	if val := os.Getenv("REDDIT_CLIENT_SECRET"); val != "" {
		c.RedditSecret = val
	}
	if val := os.Getenv("REDDIT_USER_AGENT"); val != "" {
		c.RedditUserAgent = val
	}
	if val := os.Getenv("REDDIT_BASE_URL"); val != "" {
		c.RedditBaseURL = val
	}
	if val := os.Getenv("REDDIT_OAUTH_URL"); val != "" {
		c.RedditOAuthURL = val
	}
	if val := os.Getenv("REDDIT_AUTH_URL"); val != "" {
		c.RedditAuthURL = val
	}
	if val := os.Getenv("REDDIT_RETRIES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RedditRetries = v
		}
	}

	if val := os.Getenv("DATABASE_TYPE"); val != "" {
		c.DatabaseType = strings.ToLower(val)
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.DatabaseURL = val
	}
	if val := os.Getenv("DATABASE_NAME"); val != "" {
		c.DatabaseName = val
	}

	if val := os.Getenv("HOST"); val != "" {
		c.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Port = port
		}
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		c.AllowedOrigins = splitList(val)
	}

	if val := os.Getenv("REQUEST_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RequestTimeoutSeconds = v
		}
	}
	if val := os.Getenv("WORKFLOW_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.WorkflowTimeoutSeconds = v
		}
	}

	if val := os.Getenv("REPORT_MODE"); val != "" {
		c.ReportMode = strings.ToLower(val)
	}
	if val := os.Getenv("REPORT_CURRENCY"); val != "" {
		c.ReportCurrency = val
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderDeepSeek, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unsupported llm_provider %q", c.LLMProvider))
	}
	switch c.DatabaseType {
	case DatabaseSQLite:
		if strings.TrimSpace(c.DataDir) == "" && strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("sqlite requires data_dir or database_url"))
		}
	case DatabasePostgres, DatabaseMongo:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, fmt.Errorf("database_url is required for %s", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database_type %q", c.DatabaseType))
	}
	switch c.ReportMode {
	case ReportModeTemplate, ReportModeLLM:
	default:
		errs = append(errs, fmt.Errorf("unsupported report_mode %q", c.ReportMode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("request_timeout_seconds must be positive"))
	}
	if c.WorkflowTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("workflow_timeout_seconds must be positive"))
	}
	if c.RedditRetries < 0 {
		errs = append(errs, errors.New("reddit_retries must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMAPIKey returns the key of the configured provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.DeepSeekAPIKey
	}
}

// SQLitePath is where the sqlite backend keeps its file. DATABASE_URL wins
// when it names a path.
func (c *Config) SQLitePath() string {
	if p := strings.TrimPrefix(c.DatabaseURL, "sqlite://"); p != "" {
		return p
	}
	return filepath.Join(c.DataDir, "painradar.db")
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.DataDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	c.OpenAIAPIKey = mask(c.OpenAIAPIKey)
	c.DeepSeekAPIKey = mask(c.DeepSeekAPIKey)
	c.GeminiAPIKey = mask(c.GeminiAPIKey)
	c.RedditSecret = mask(c.RedditSecret)
	if c.DatabaseType != DatabaseSQLite {
		c.DatabaseURL = mask(c.DatabaseURL)
	}
	return c
}

func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
