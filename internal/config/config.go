package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything main needs to wire the process, loaded from
// config.yaml with environment-variable overrides (DATABASE_HOST overrides
// database.host, and so on).
type Config struct {
	ServerHost      string
	ServerPort      string
	ShutdownTimeout time.Duration

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	LogLevel  string
	LogFormat string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration

	ImagesRoot string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SupportEmail string

	APNSEnabled bool
	APNSHost    string
	APNSTopic   string
	APNSKeyFile string
	APNSKeyID   string
	APNSTeamID  string

	PushTimeout time.Duration
	SendBuffer  int
}

// Load reads config.yaml from the usual locations and applies defaults the
// same way the rest of the service expects them.
func Load() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerHost:      viper.GetString("server.host"),
		ServerPort:      viper.GetString("server.port"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),

		DBHost:     viper.GetString("database.host"),
		DBPort:     viper.GetInt("database.port"),
		DBUser:     viper.GetString("database.user"),
		DBPassword: viper.GetString("database.password"),
		DBName:     viper.GetString("database.dbname"),
		DBSSLMode:  viper.GetString("database.sslmode"),

		LogLevel:  viper.GetString("logging.level"),
		LogFormat: viper.GetString("logging.format"),

		AccessSecret:  viper.GetString("auth.access_secret"),
		RefreshSecret: viper.GetString("auth.refresh_secret"),
		AccessTTL:     viper.GetDuration("auth.access_ttl"),
		RefreshTTL:    viper.GetDuration("auth.refresh_ttl"),
		ResetTTL:      viper.GetDuration("auth.reset_ttl"),

		ImagesRoot: viper.GetString("images.root"),

		SMTPHost:     viper.GetString("smtp.host"),
		SMTPPort:     viper.GetInt("smtp.port"),
		SMTPUsername: viper.GetString("smtp.username"),
		SMTPPassword: viper.GetString("smtp.password"),
		SupportEmail: viper.GetString("smtp.support_address"),

		APNSEnabled: viper.GetBool("apns.enabled"),
		APNSHost:    viper.GetString("apns.host"),
		APNSTopic:   viper.GetString("apns.topic"),
		APNSKeyFile: viper.GetString("apns.key_file"),
		APNSKeyID:   viper.GetString("apns.key_id"),
		APNSTeamID:  viper.GetString("apns.team_id"),

		PushTimeout: viper.GetDuration("chat.push_timeout"),
		SendBuffer:  viper.GetInt("chat.send_buffer"),
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerHost == "" {
		cfg.ServerHost = "0.0.0.0"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "3000"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DBHost == "" {
		cfg.DBHost = "localhost"
	}
	if cfg.DBPort == 0 {
		cfg.DBPort = 5432
	}
	if cfg.DBUser == "" {
		cfg.DBUser = "postgres"
	}
	if cfg.DBPassword == "" {
		cfg.DBPassword = "postgres"
	}
	if cfg.DBName == "" {
		cfg.DBName = "rosegold"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * time.Hour
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = 15 * time.Minute
	}
	if cfg.ImagesRoot == "" {
		cfg.ImagesRoot = "./images"
	}
	if cfg.PushTimeout == 0 {
		cfg.PushTimeout = 2 * time.Second
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 16
	}
}
