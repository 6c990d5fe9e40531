package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Midtrans   MidtransConfig
	Medanpedia MedanpediaConfig
	Telegram   TelegramConfig
	App        AppConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// MidtransConfig carries both key sets; the active pair is selected by the
// Sandbox flag when the gateway adapter is constructed.
type MidtransConfig struct {
	ServerKey        string
	ClientKey        string
	SandboxServerKey string
	SandboxClientKey string
	Sandbox          bool
}

// ServerKeyFor returns the server key matching the sandbox flag.
func (m *MidtransConfig) ServerKeyFor() string {
	if m.Sandbox {
		return m.SandboxServerKey
	}
	return m.ServerKey
}

// ClientKeyFor returns the client key matching the sandbox flag.
func (m *MidtransConfig) ClientKeyFor() string {
	if m.Sandbox {
		return m.SandboxClientKey
	}
	return m.ClientKey
}

type MedanpediaConfig struct {
	APIID  string
	APIKey string
}

type TelegramConfig struct {
	BotToken      string
	ReportChannel string
}

type AppConfig struct {
	BaseURL     string
	Timezone    string
	HTTPTimeout time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("APP_BASE_URL", "http://localhost:8080")
	viper.SetDefault("APP_TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("HTTP_TIMEOUT", "30s")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("MIDTRANS_SANDBOX", false)

	timeout, err := time.ParseDuration(viper.GetString("HTTP_TIMEOUT"))
	if err != nil {
		timeout = 30 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Midtrans: MidtransConfig{
			ServerKey:        viper.GetString("MIDTRANS_SERVER_KEY"),
			ClientKey:        viper.GetString("MIDTRANS_CLIENT_KEY"),
			SandboxServerKey: viper.GetString("MIDTRANS_SANDBOX_SERVER_KEY"),
			SandboxClientKey: viper.GetString("MIDTRANS_SANDBOX_CLIENT_KEY"),
			Sandbox:          viper.GetBool("MIDTRANS_SANDBOX"),
		},
		Medanpedia: MedanpediaConfig{
			APIID:  viper.GetString("MEDANPEDIA_API_ID"),
			APIKey: viper.GetString("MEDANPEDIA_API_KEY"),
		},
		Telegram: TelegramConfig{
			BotToken:      viper.GetString("TELEGRAM_BOT_TOKEN"),
			ReportChannel: viper.GetString("TELEGRAM_REPORT_CHANNEL"),
		},
		App: AppConfig{
			BaseURL:     viper.GetString("APP_BASE_URL"),
			Timezone:    viper.GetString("APP_TIMEZONE"),
			HTTPTimeout: timeout,
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Midtrans.ServerKeyFor() == "" {
		log.Println("WARNING: Midtrans server key is not set")
	}

	return cfg, nil
}

// Location resolves the business timezone. All payment expiry arithmetic
// happens in this zone because the gateway reports timestamps in it.
func (a *AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
