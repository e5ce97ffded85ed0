package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	App          App          `mapstructure:",squash"`
	Server       Server       `mapstructure:",squash"`
	Database     Database     `mapstructure:",squash"`
	Auth         Auth         `mapstructure:",squash"`
	Fetch        Fetch        `mapstructure:",squash"`
	Cache        Cache        `mapstructure:",squash"`
	Report       Report       `mapstructure:",squash"`
	ReportWarmup ReportWarmup `mapstructure:",squash"`
	Facebook     Facebook     `mapstructure:",squash"`
	TikTok       TikTok       `mapstructure:",squash"`
	Twitter      Twitter      `mapstructure:",squash"`
	AllegroAds   AllegroAds   `mapstructure:",squash"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type Database struct {
	DSN      string `mapstructure:"-"`
	Driver   string `mapstructure:"database_driver"`
	Password string `mapstructure:"database_password"`
	URL      string `mapstructure:"database_url"`
	User     string `mapstructure:"database_user"`
}

type Auth struct {
	Secret string `mapstructure:"auth_secret"`
}

// Fetch controla a política de retry e backoff das chamadas às plataformas
type Fetch struct {
	MaxRetries       int           `mapstructure:"fetch_max_retries"`
	BaseDelay        time.Duration `mapstructure:"fetch_base_delay"`
	RateLimitMaxWait time.Duration `mapstructure:"fetch_rate_limit_max_wait"`
	TransientMaxWait time.Duration `mapstructure:"fetch_transient_max_wait"`
	RequestTimeout   time.Duration `mapstructure:"fetch_request_timeout"`
}

type Cache struct {
	TTL       time.Duration `mapstructure:"cache_ttl"`
	SizeBytes int           `mapstructure:"cache_size_bytes"`
}

type Report struct {
	UnitTimeout time.Duration `mapstructure:"report_unit_timeout"`
	// EstimatedCTR é a base de estimativa de cliques quando a plataforma
	// não informa cliques reais no período
	EstimatedCTR float64 `mapstructure:"report_estimated_ctr"`
}

type ReportWarmup struct {
	CronSchedule        string `mapstructure:"report_warmup_cron"`
	RequestDelaySeconds int    `mapstructure:"report_warmup_request_delay_seconds"`
	MaxConcurrentJobs   int    `mapstructure:"report_warmup_max_concurrent_jobs"`
	Enabled             bool   `mapstructure:"report_warmup_enabled"`
}

type Facebook struct {
	BaseURL  string `mapstructure:"facebook_base_url"`
	URL      string `mapstructure:"-"`
	Version  string `mapstructure:"facebook_version"`
	TokenURL string `mapstructure:"facebook_token_url"`
}

type TikTok struct {
	URL      string `mapstructure:"tiktok_url"`
	TokenURL string `mapstructure:"tiktok_token_url"`
}

type Twitter struct {
	URL      string `mapstructure:"twitter_url"`
	TokenURL string `mapstructure:"twitter_token_url"`
}

type AllegroAds struct {
	URL      string `mapstructure:"allegro_ads_url"`
	TokenURL string `mapstructure:"allegro_ads_token_url"`
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/social_metrics")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")

	viper.SetDefault("AUTH_SECRET", "your_auth_secret")

	viper.SetDefault("FETCH_MAX_RETRIES", 3)
	viper.SetDefault("FETCH_BASE_DELAY", "1s")
	viper.SetDefault("FETCH_RATE_LIMIT_MAX_WAIT", "30s")
	viper.SetDefault("FETCH_TRANSIENT_MAX_WAIT", "10s")
	viper.SetDefault("FETCH_REQUEST_TIMEOUT", "30s")

	viper.SetDefault("CACHE_TTL", "15m")
	viper.SetDefault("CACHE_SIZE_BYTES", 16*1024*1024)

	viper.SetDefault("REPORT_UNIT_TIMEOUT", "45s")
	viper.SetDefault("REPORT_ESTIMATED_CTR", 0.02)

	// Defaults para o aquecimento periódico do cache de relatórios
	viper.SetDefault("REPORT_WARMUP_CRON", "*/20 * * * *")     // A cada 20 minutos
	viper.SetDefault("REPORT_WARMUP_REQUEST_DELAY_SECONDS", 2) // 2 segundos entre contas
	viper.SetDefault("REPORT_WARMUP_MAX_CONCURRENT_JOBS", 3)   // 3 contas concorrentes
	viper.SetDefault("REPORT_WARMUP_ENABLED", false)

	viper.SetDefault("FACEBOOK_BASE_URL", "https://graph.facebook.com")
	viper.SetDefault("FACEBOOK_VERSION", "v22.0")
	viper.SetDefault("FACEBOOK_TOKEN_URL", "https://graph.facebook.com/v22.0/oauth/access_token")

	viper.SetDefault("TIKTOK_URL", "https://business-api.tiktok.com/open_api/v1.3")
	viper.SetDefault("TIKTOK_TOKEN_URL", "https://business-api.tiktok.com/open_api/v1.3/oauth2/token/")

	viper.SetDefault("TWITTER_URL", "https://api.twitter.com/2")
	viper.SetDefault("TWITTER_TOKEN_URL", "https://api.twitter.com/2/oauth2/token")

	viper.SetDefault("ALLEGRO_ADS_URL", "https://api.allegro.pl")
	viper.SetDefault("ALLEGRO_ADS_TOKEN_URL", "https://allegro.pl/auth/oauth/token")

	viper.SetDefault("LOG_LEVEL", "debug")
}

func NewConfig() (*Config, error) {
	// Primeiro carregar o arquivo .env usando godotenv
	loadEnvFile() // ONLY LOCAL

	config := &Config{}

	// Configurar valores padrão
	SetDefaults()

	// Configurar o Viper
	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv() // Isso permite que o Viper leia variáveis de ambiente

	// Tentar ler o arquivo .env com o Viper (opcional, já que usamos godotenv)
	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("Usando variáveis carregadas pelo godotenv (viper não conseguiu ler .env):", err)
	} else {
		logrus.Info("Arquivo .env lido pelo Viper com sucesso")
	}

	err := viper.Unmarshal(&config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	config.Facebook.URL = fmt.Sprintf("%s/%s", config.Facebook.BaseURL, config.Facebook.Version)

	config.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		config.Database.Driver,
		config.Database.User,
		config.Database.Password,
		config.Database.URL,
	)

	return config, nil
}

// Função auxiliar para carregar o arquivo .env usando godotenv
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("Não foi possível obter o diretório atual:", err)
		return
	}

	// Tentar várias localizações possíveis para o arquivo .env
	locations := []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(filepath.Dir(cwd), ".env"),
		filepath.Join(cwd, "../.env"),
		filepath.Join(cwd, "../../.env"),
	}

	for _, location := range locations {
		err := godotenv.Load(location)
		if err == nil {
			logrus.Info("Arquivo .env carregado com sucesso de:", location)
			return
		}
	}

	logrus.Warn("Não foi possível carregar o arquivo .env de nenhuma localização conhecida")
}
