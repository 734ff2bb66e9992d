package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	Worker    WorkerConfig
	Weather   WeatherConfig
	Scheduler SchedulerConfig
	SMTP      SMTPConfig
	Twilio    TwilioConfig
	Notify    NotifyConfig
	Kafka     KafkaConfig
	MQTT      MQTTConfig
	Auth      AuthConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type WeatherConfig struct {
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	CacheTTL      time.Duration
	CacheSweep    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	Lookahead time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type TwilioConfig struct {
	BaseURL      string
	AccountSID   string
	AuthToken    string
	SMSFrom      string
	WhatsAppFrom string
}

type NotifyConfig struct {
	SendTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

type AuthConfig struct {
	JWTSecret string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 50),
		},
		Weather: WeatherConfig{
			APIURL:        getEnv("WEATHER_API_URL", "https://api.openweathermap.org"),
			APIKey:        getEnv("WEATHER_API_KEY", ""),
			Timeout:       getEnvDuration("WEATHER_TIMEOUT", 10*time.Second),
			CacheTTL:      getEnvDuration("WEATHER_CACHE_TTL", 10*time.Minute),
			CacheSweep:    getEnvDuration("WEATHER_CACHE_SWEEP", 30*time.Minute),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getEnvBool("SCHEDULER_ENABLED", true),
			Interval:  getEnvDuration("SCHEDULER_INTERVAL", 5*time.Minute),
			Lookahead: getEnvDuration("SCHEDULER_LOOKAHEAD", 72*time.Hour),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "alerts@example.com"),
		},
		Twilio: TwilioConfig{
			BaseURL:      getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			SMSFrom:      getEnv("TWILIO_SMS_FROM", ""),
			WhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		},
		Notify: NotifyConfig{
			SendTimeout: getEnvDuration("NOTIFY_SEND_TIMEOUT", 15*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC_ALERTS", "weather.alerts"),
		},
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "event-weather-alerts"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "weather/alerts"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/weather-alerts.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler interval must be at least 1 minute")
	}
	if c.Scheduler.Lookahead <= 0 {
		return fmt.Errorf("scheduler lookahead must be positive")
	}
	if c.Weather.CacheTTL <= 0 {
		return fmt.Errorf("weather cache TTL must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
