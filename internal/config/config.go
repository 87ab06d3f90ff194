package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"support-rag/internal/models"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Server   ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// DatabaseConfig selects the session store. Driver is one of
// sqlite, postgres, pq, bolt or memory.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
	Debug    bool   `yaml:"debug"`
}

// LLMConfig describes one model endpoint. Provider selects the client:
// ollama, openai, http (embedding only), or for chat anthropic,
// openrouter and fantasy-openai.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RAGConfig struct {
	TopK                int     `yaml:"top_k"`
	HistoryLimit        int     `yaml:"history_limit"`
	RelevantFAQs        int     `yaml:"relevant_faqs"`
	EscalationThreshold float64 `yaml:"escalation_threshold"`
	// EscalationKeywords replaces the built-in keyword list when set.
	EscalationKeywords []string `yaml:"escalation_keywords"`
}

// CorpusConfig controls where FAQs are stored and how they are imported.
// Backend is sql (the session database) or chromem.
type CorpusConfig struct {
	Backend       string `yaml:"backend"`
	ChromemPath   string `yaml:"chromem_path"`
	Collection    string `yaml:"collection"`
	EncryptionKey string `yaml:"encryption_key"`
	FAQFile       string `yaml:"faq_file"`
	Watch         bool   `yaml:"watch"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryDelayMs  int    `yaml:"retry_delay_ms"`
	ImportDelayMs int    `yaml:"import_delay_ms"`
}

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	MaxMessageLength int    `yaml:"max_message_length"`
}

// LoadConfig reads a yaml config file. A missing file yields the defaults.
// Values of the form ${VAR} are expanded from the environment, which is
// populated from a .env file next to the working directory when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/support.db"
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = "ollama"
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == "ollama" {
		c.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = "nomic-embed-text"
	}
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = os.Getenv("EMBED_API_KEY")
	}

	if c.ChatLLM.Provider == "" {
		c.ChatLLM.Provider = "ollama"
	}
	if c.ChatLLM.BaseURL == "" && c.ChatLLM.Provider == "ollama" {
		c.ChatLLM.BaseURL = "http://localhost:11434"
	}
	if c.ChatLLM.Model == "" {
		c.ChatLLM.Model = "llama3.2"
	}
	if c.ChatLLM.Key == "" {
		c.ChatLLM.Key = os.Getenv("CHAT_API_KEY")
	}
	if c.ChatLLM.Temperature == 0 {
		c.ChatLLM.Temperature = 0.7
	}
	if c.ChatLLM.MaxTokens == 0 {
		c.ChatLLM.MaxTokens = 700
	}
	for _, l := range []*LLMConfig{&c.EmbedLLM, &c.ChatLLM} {
		if l.TimeoutSec == 0 {
			l.TimeoutSec = 60
		}
	}

	if c.RAG.TopK == 0 {
		c.RAG.TopK = models.DefaultTopK
	}
	if c.RAG.HistoryLimit == 0 {
		c.RAG.HistoryLimit = models.DefaultHistoryLimit
	}
	if c.RAG.RelevantFAQs == 0 {
		c.RAG.RelevantFAQs = models.DefaultRelevantFAQs
	}
	if c.RAG.EscalationThreshold == 0 {
		c.RAG.EscalationThreshold = models.EscalationThreshold
	}

	if c.Corpus.Backend == "" {
		c.Corpus.Backend = "sql"
	}
	if c.Corpus.ChromemPath == "" {
		c.Corpus.ChromemPath = "./data/chromemdb"
	}
	if c.Corpus.Collection == "" {
		c.Corpus.Collection = "faqs"
	}
	if c.Corpus.FAQFile == "" {
		c.Corpus.FAQFile = "./data/faqs.json"
	}
	if c.Corpus.RetryAttempts == 0 {
		c.Corpus.RetryAttempts = 3
	}
	if c.Corpus.RetryDelayMs == 0 {
		c.Corpus.RetryDelayMs = 500
	}
	if c.Corpus.ImportDelayMs == 0 {
		c.Corpus.ImportDelayMs = 500
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":5002"
	}
	if c.Server.MaxMessageLength == 0 {
		c.Server.MaxMessageLength = models.MaxMessageLength
	}
}
