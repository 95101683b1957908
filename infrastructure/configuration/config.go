package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App                         `json:"app"`
	Database    Database                    `json:"database"`
	RedisClient RedisClient                 `json:"redisClient"`
	Events      Events                      `json:"events"`
	Pubsub      Pubsub                      `json:"pubsub"`
	ServiceBus  ServiceBus                  `json:"serviceBus"`
	Vault       Vault                       `json:"vault"`
	OAuth       OAuth                       `json:"oauth"`
	Providers   map[string]ProviderOverride `json:"providers"`
	Jobs        Jobs                        `json:"jobs"`
	Publish     Publish                     `json:"publish"`
	AI          AI                          `json:"ai"`
}

type App struct {
	Port          int    `json:"port"`
	SecretKey     string `json:"secretKey"`
	LocalUserID   string `json:"localUserID"`
	UIBaseURL     string `json:"uiBaseURL"`
	PublicBaseURL string `json:"publicBaseURL"`
	DataDir       string `json:"dataDir"`
	TLSEnabled    bool   `json:"tlsEnabled"`
	TLSCertFile   string `json:"tlsCertFile"`
	TLSKeyFile    string `json:"tlsKeyFile"`
}

type Database struct {
	Vendor string `json:"vendor"` // sqlite | postgres | mssql
	Sqlite Sqlite `json:"sqlite"`
	Psql   Db     `json:"psql"`
	Mssql  Db     `json:"mssql"`
	Mongo  Db     `json:"mongo"`
}

type Sqlite struct {
	Path string `json:"path"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

// Events selects the bus domain events go to: "pubsub", "servicebus" or "" for none.
type Events struct {
	Provider string `json:"provider"`
	Topic    string `json:"topic"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
}

// Vault takes a base64 key or a passphrase. Never logged.
type Vault struct {
	Key        string `json:"key"`
	Passphrase string `json:"passphrase"`
}

type OAuth struct {
	TransactionTTLSeconds int `json:"transactionTTLSeconds"`
	ConnectPerMinute      int `json:"connectPerMinute"`
	SweepIntervalSeconds  int `json:"sweepIntervalSeconds"`
	HTTPTimeoutSeconds    int `json:"httpTimeoutSeconds"`
}

// ProviderOverride replaces static provider endpoints, mainly for sandboxes and tests.
type ProviderOverride struct {
	AuthURL         string `json:"authURL"`
	TokenURL        string `json:"tokenURL"`
	RequestTokenURL string `json:"requestTokenURL"`
	AuthorizeURL    string `json:"authorizeURL"`
	AccessTokenURL  string `json:"accessTokenURL"`
	ProfileURL      string `json:"profileURL"`
	APIBaseURL      string `json:"apiBaseURL"`
}

type Jobs struct {
	TimeoutSeconds   int `json:"timeoutSeconds"`
	RetentionMinutes int `json:"retentionMinutes"`
	MaxConcurrent    int `json:"maxConcurrent"`
}

type Publish struct {
	MaxRetries         int `json:"maxRetries"`
	BackoffMillis      int `json:"backoffMillis"`
	CallTimeoutSeconds int `json:"callTimeoutSeconds"`
}

type AI struct {
	BaseURL        string `json:"baseURL"`
	APIKey         string `json:"apiKey"`
	TextModel      string `json:"textModel"`
	ImageModel     string `json:"imageModel"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

var C Config

func init() {
	LoadEnvFromFile("config.env", ".env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initDefaults(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	C.Database.Vendor = getConfigValue(C.Database.Vendor, "DB_VENDOR", "sqlite")
	C.Database.Sqlite.Path = getConfigValue(C.Database.Sqlite.Path, "DB_SQLITE_PATH", "")

	C.Database.Psql.Name = getConfigValue(C.Database.Psql.Name, "DB_NAME", "")
	C.Database.Psql.Host = getConfigValue(C.Database.Psql.Host, "DB_HOST", "")
	C.Database.Psql.Port = getConfigValue(C.Database.Psql.Port, "DB_PORT", "5432")
	C.Database.Psql.User = getConfigValue(C.Database.Psql.User, "DB_USER", "")
	C.Database.Psql.Password = getConfigValue(C.Database.Psql.Password, "DB_PASSWORD", "")
	C.Database.Psql.SSLMode = getConfigValue(C.Database.Psql.SSLMode, "DB_SSLMODE", "disable")

	// Azure SQL in production
	C.Database.Mssql.Name = getConfigValue(C.Database.Mssql.Name, "MSSQL_DB_NAME", "")
	C.Database.Mssql.Host = getConfigValue(C.Database.Mssql.Host, "MSSQL_HOST", "localhost")
	C.Database.Mssql.Port = getConfigValue(C.Database.Mssql.Port, "MSSQL_PORT", "1433")
	C.Database.Mssql.User = getConfigValue(C.Database.Mssql.User, "MSSQL_USER", "sa")
	C.Database.Mssql.Password = getConfigValue(C.Database.Mssql.Password, "MSSQL_PASSWORD", "")

	C.RedisClient.Host = getConfigValue(C.RedisClient.Host, "REDIS_HOST", "")
	C.RedisClient.Port = getConfigValue(C.RedisClient.Port, "REDIS_PORT", "6379")
	C.RedisClient.Password = getConfigValue(C.RedisClient.Password, "REDIS_PASSWORD", "")

	C.Database.Mongo.Host = getConfigValue(C.Database.Mongo.Host, "MONGO_HOST", "")
	C.Database.Mongo.Name = getConfigValue(C.Database.Mongo.Name, "MONGO_DB_NAME", "ai_news_hub")
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true":
			C.App.TLSEnabled = true
		case "0", "false":
			C.App.TLSEnabled = false
		}
	}
	C.App.TLSCertFile = getConfigValue(C.App.TLSCertFile, "TLS_CERT_FILE", "")
	C.App.TLSKeyFile = getConfigValue(C.App.TLSKeyFile, "TLS_KEY_FILE", "")
	if C.App.TLSEnabled {
		if C.App.TLSCertFile == "" {
			if _, err := os.Stat("certs/localhost.crt"); err == nil {
				C.App.TLSCertFile = "certs/localhost.crt"
			}
		}
		if C.App.TLSKeyFile == "" {
			if _, err := os.Stat("certs/localhost.key"); err == nil {
				C.App.TLSKeyFile = "certs/localhost.key"
			}
		}
		logger.GetLogger().WithFields(map[string]interface{}{"cert": C.App.TLSCertFile, "key": C.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}

	C.App.LocalUserID = getConfigValue(C.App.LocalUserID, "LOCAL_USER_ID", "local")
	C.App.DataDir = getConfigValue(C.App.DataDir, "DATA_DIR", "data")
	C.App.UIBaseURL = getConfigValue(C.App.UIBaseURL, "UI_BASE_URL", "http://localhost:3000")
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	C.App.PublicBaseURL = getConfigValue(C.App.PublicBaseURL, "PUBLIC_BASE_URL", fmt.Sprintf("%s://localhost:%d", scheme, C.App.Port))
	if C.App.TLSEnabled && !hasHTTPS(C.App.PublicBaseURL) {
		C.App.PublicBaseURL = toHTTPSCallback(C.App.PublicBaseURL)
	}

	C.Vault.Key = getConfigValue(C.Vault.Key, "VAULT_KEY", "")
	C.Vault.Passphrase = getConfigValue(C.Vault.Passphrase, "VAULT_PASSPHRASE", "")
	C.AI.APIKey = getConfigValue(C.AI.APIKey, "AI_API_KEY", "")
	C.AI.BaseURL = getConfigValue(C.AI.BaseURL, "AI_BASE_URL", "https://api.openai.com/v1")

	if C.App.SecretKey == "" {
		logger.GetLogger().WithField("user_id", C.App.LocalUserID).Warn("App.SecretKey not set; requests run as the local user")
	}
}

func initDefaults(C *Config) {
	setDefault(&C.OAuth.TransactionTTLSeconds, 600)
	setDefault(&C.OAuth.ConnectPerMinute, 10)
	setDefault(&C.OAuth.SweepIntervalSeconds, 300)
	setDefault(&C.OAuth.HTTPTimeoutSeconds, 20)
	setDefault(&C.Jobs.TimeoutSeconds, 300)
	setDefault(&C.Jobs.RetentionMinutes, 60)
	setDefault(&C.Jobs.MaxConcurrent, 4)
	setDefault(&C.Publish.MaxRetries, 2)
	setDefault(&C.Publish.BackoffMillis, 500)
	setDefault(&C.Publish.CallTimeoutSeconds, 30)
	setDefault(&C.AI.TimeoutSeconds, 120)
	if C.AI.TextModel == "" {
		C.AI.TextModel = "gpt-4o-mini"
	}
	if C.AI.ImageModel == "" {
		C.AI.ImageModel = "dall-e-3"
	}
	if C.Events.Topic == "" {
		C.Events.Topic = "publish-events"
	}
	if C.Providers == nil {
		C.Providers = map[string]ProviderOverride{}
	}
}

func (o OAuth) TransactionTTL() time.Duration {
	return time.Duration(o.TransactionTTLSeconds) * time.Second
}

func (o OAuth) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}

func (o OAuth) HTTPTimeout() time.Duration {
	return time.Duration(o.HTTPTimeoutSeconds) * time.Second
}

func (j Jobs) Timeout() time.Duration { return time.Duration(j.TimeoutSeconds) * time.Second }

func (j Jobs) Retention() time.Duration { return time.Duration(j.RetentionMinutes) * time.Minute }

func (p Publish) Backoff() time.Duration { return time.Duration(p.BackoffMillis) * time.Millisecond }

func (p Publish) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

func (a AI) Timeout() time.Duration { return time.Duration(a.TimeoutSeconds) * time.Second }

// CallbackURL is the default redirect URI registered with a provider.
func (a App) CallbackURL(platform string) string {
	return strings.TrimRight(a.PublicBaseURL, "/") + "/callback/" + platform
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func hasHTTPS(u string) bool { return strings.HasPrefix(u, "https://") }

func toHTTPSCallback(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + u[len("http://"):]
	}
	return u
}

// getConfigValue prefers the config file value, then the environment, then def.
func getConfigValue(configValue, envKey, def string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, def)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
