// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Auth содержит учетные данные VK API
type Auth struct {
	// Token — access_token, полученный через ручную OAuth-авторизацию.
	Token string `json:"token" yaml:"token"`
	// AppID — идентификатор standalone-приложения для построения ссылки авторизации.
	AppID string `json:"app_id" yaml:"app_id"`
	// UserID — идентификатор владельца токена.
	UserID string `json:"user_id" yaml:"user_id"`
}

// Output содержит конфигурацию выходного каталога и формата
type Output struct {
	Dir    string `json:"dir" yaml:"dir"`
	Format string `json:"format" yaml:"format"` // json, xlsx
}

// Downloads содержит политики скачивания вложений
type Downloads struct {
	Audio      bool `json:"audio" yaml:"audio"`
	AudioDepth int  `json:"audio_depth" yaml:"audio_depth"`
	Docs       bool `json:"docs" yaml:"docs"`
	DocsDepth  int  `json:"docs_depth" yaml:"docs_depth"`
	NoVoice    bool `json:"no_voice" yaml:"no_voice"`
	SaveRaw    bool `json:"save_raw" yaml:"save_raw"`
}

// Server содержит конфигурацию серверного режима
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	TaskTimeoutSeconds     int    `json:"task_timeout_seconds" yaml:"task_timeout_seconds"` // 0 - без ограничений
	CacheTTLMinutes        int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Config содержит конфигурацию приложения
type Config struct {
	Auth      Auth      `json:"auth" yaml:"auth"`
	Output    Output    `json:"output" yaml:"output"`
	Downloads Downloads `json:"downloads" yaml:"downloads"`
	Server    Server    `json:"server" yaml:"server"`
	Logging   Logging   `json:"logging" yaml:"logging"`
}

// LoadConfig загружает конфигурацию приложения из переменных окружения, .env файла или config.yml
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Если .env файла не существует, это нормально, мы будем полагаться на переменные окружения или config.yml
	}

	// Попытка загрузки из config.yml сначала
	cfg, err := loadFromYAML("config.yml")
	if err != nil {
		// Если загрузка YAML не удалась, используем переменные окружения
		cfg = loadFromEnv()
	}

	cfg.applyDefaults()
	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return &cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения
func loadFromEnv() *Config {
	return &Config{
		Auth: Auth{
			Token:  getEnv("VK_TOKEN", ""),
			AppID:  getEnv("VK_APP_ID", ""),
			UserID: getEnv("VK_USER_ID", ""),
		},
		Output: Output{
			Dir:    getEnv("OUTPUT_DIR", DefaultOutputDir),
			Format: getEnv("OUTPUT_FORMAT", DefaultOutputFormat),
		},
		Downloads: Downloads{
			Audio:      getEnvBool("DOWNLOAD_AUDIO", false),
			AudioDepth: getEnvInt("DOWNLOAD_AUDIO_DEPTH", DefaultMediaDepth),
			Docs:       getEnvBool("DOWNLOAD_DOCS", false),
			DocsDepth:  getEnvInt("DOWNLOAD_DOCS_DEPTH", DefaultMediaDepth),
			NoVoice:    getEnvBool("NO_VOICE", false),
			SaveRaw:    getEnvBool("SAVE_RAW", false),
		},
		Server: Server{
			Host:                   getEnv("SERVER_HOST", DefaultServerHost),
			Port:                   getEnvInt("SERVER_PORT", DefaultServerPort),
			ShutdownTimeoutSeconds: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", DefaultShutdownTimeoutSeconds),
			TaskTimeoutSeconds:     getEnvInt("TASK_TIMEOUT_SECONDS", DefaultTaskTimeoutSeconds),
			CacheTTLMinutes:        getEnvInt("CACHE_TTL_MINUTES", DefaultCacheTTLMinutes),
		},
		Logging: Logging{
			Level: getEnv("LOG_LEVEL", DefaultLogLevel),
		},
	}
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.Format == "" {
		c.Output.Format = DefaultOutputFormat
	}
	if c.Downloads.AudioDepth == 0 {
		c.Downloads.AudioDepth = DefaultMediaDepth
	}
	if c.Downloads.DocsDepth == 0 {
		c.Downloads.DocsDepth = DefaultMediaDepth
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	if c.Server.TaskTimeoutSeconds == 0 {
		c.Server.TaskTimeoutSeconds = DefaultTaskTimeoutSeconds
	}
	if c.Server.CacheTTLMinutes == 0 {
		c.Server.CacheTTLMinutes = DefaultCacheTTLMinutes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir не может быть пустым")
	}

	switch c.Output.Format {
	case "json", "xlsx":
		// all good
	default:
		return fmt.Errorf("output.format должен быть одним из: json, xlsx")
	}

	if c.Downloads.AudioDepth < 0 {
		return fmt.Errorf("downloads.audio_depth должно быть неотрицательным")
	}
	if c.Downloads.DocsDepth < 0 {
		return fmt.Errorf("downloads.docs_depth должно быть неотрицательным")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds должно быть положительным")
	}
	if c.Server.TaskTimeoutSeconds < 0 {
		return fmt.Errorf("server.task_timeout_seconds должно быть неотрицательным (0 для отсутствия ограничений)")
	}
	if c.Server.CacheTTLMinutes <= 0 {
		return fmt.Errorf("server.cache_ttl_minutes должно быть положительным целым числом")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt извлекает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool извлекает булево значение переменной окружения
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
