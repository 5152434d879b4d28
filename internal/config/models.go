package config

import (
	"time"
)

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// SMTPConfig represents the SMTP content filter configuration
type SMTPConfig struct {
	Enabled        bool
	ListenAddress  string
	BlockPhishing  bool
	Explain        bool
	ModifySubject  bool
	SubjectPrefix  string
	StatusHeader   string
	ScoreHeader    string
	ModelHeader    string
	PostfixEnabled bool
	PostfixAddress string
	PostfixPort    int
}

// ModelConfig locates the model artifacts
type ModelConfig struct {
	Dir                   string
	ClassifierFile        string
	BodyVectorizerFile    string
	SubjectVectorizerFile string
	SenderEncoderFile     string
}

// GmailConfig represents the Gmail client configuration
type GmailConfig struct {
	Endpoint       string
	RequestTimeout time.Duration
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{ListenAddress: c.GetString("server.listen_address")}
	var err error
	if cfg.ReadTimeout, err = c.GetDuration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.GetDuration("server.write_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = c.GetDuration("server.shutdown_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetSMTP returns the SMTP content filter configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:        c.GetBool("server.smtp.enabled"),
		ListenAddress:  c.GetString("server.smtp.listen_address"),
		BlockPhishing:  c.GetBool("server.smtp.block_phishing"),
		Explain:        c.GetBool("server.smtp.explain"),
		ModifySubject:  c.GetBool("server.smtp.modify_subject"),
		SubjectPrefix:  c.GetString("server.smtp.subject_prefix"),
		StatusHeader:   c.GetString("server.smtp.headers.status"),
		ScoreHeader:    c.GetString("server.smtp.headers.score"),
		ModelHeader:    c.GetString("server.smtp.headers.model"),
		PostfixEnabled: c.GetBool("server.smtp.postfix.enabled"),
		PostfixAddress: c.GetString("server.smtp.postfix.address"),
		PostfixPort:    c.GetInt("server.smtp.postfix.port"),
	}
}

// GetModel returns the model artifact locations
func (c *Config) GetModel() ModelConfig {
	return ModelConfig{
		Dir:                   c.GetString("model.dir"),
		ClassifierFile:        c.GetString("model.classifier_file"),
		BodyVectorizerFile:    c.GetString("model.body_vectorizer_file"),
		SubjectVectorizerFile: c.GetString("model.subject_vectorizer_file"),
		SenderEncoderFile:     c.GetString("model.sender_encoder_file"),
	}
}

// GetGmail returns the Gmail client configuration
func (c *Config) GetGmail() (GmailConfig, error) {
	timeout, err := c.GetDuration("gmail.request_timeout")
	if err != nil {
		return GmailConfig{}, err
	}
	return GmailConfig{
		Endpoint:       c.GetString("gmail.endpoint"),
		RequestTimeout: timeout,
	}, nil
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cfg := CacheConfig{
		Type:          c.GetString("cache.type"),
		Enabled:       c.GetBool("cache.enabled"),
		SQLitePath:    c.GetString("cache.sqlite_path"),
		MySQLDSN:      c.GetString("cache.mysql_dsn"),
		RedisAddr:     c.GetString("cache.redis_addr"),
		RedisPassword: c.GetString("cache.redis_password"),
		RedisDB:       c.GetInt("cache.redis_db"),
	}
	var err error
	if cfg.TTL, err = c.GetDuration("cache.ttl"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.GetDuration("cache.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetTrustedDomains returns the sender domains that bypass classification
func (c *Config) GetTrustedDomains() []string {
	return c.GetStringSlice("phishing.trusted_domains")
}

// GetLogging returns the logger configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
