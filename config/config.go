package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"sikalori"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`

	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL            time.Duration `envconfig:"JWT_TTL" default:"72h"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`

	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	FreeDailyScans int    `envconfig:"FREE_DAILY_SCANS" default:"3"`

	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GCPProject   string        `envconfig:"GCP_PROJECT"`
	AICacheTTL   time.Duration `envconfig:"AI_CACHE_TTL" default:"24h"`

	AWSRegion     string `envconfig:"AWS_REGION" default:"ap-southeast-1"`
	S3Bucket      string `envconfig:"S3_BUCKET"`
	CloudFrontURL string `envconfig:"CLOUDFRONT_URL"`
	SESEmail      string `envconfig:"SES_EMAIL"`
	ContactInbox  string `envconfig:"CONTACT_INBOX"`
	SNSFCMArn     string `envconfig:"SNS_FCM_ARN"`

	UseRekognition bool `envconfig:"USE_REKOGNITION" default:"false"`

	MidtransServerKey  string `envconfig:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey  string `envconfig:"MIDTRANS_CLIENT_KEY"`
	MidtransProduction bool   `envconfig:"MIDTRANS_PRODUCTION" default:"false"`
	PremiumPriceIDR    int64  `envconfig:"PREMIUM_PRICE_IDR" default:"29000"`
	PremiumDays        int    `envconfig:"PREMIUM_DAYS" default:"30"`

	CalculatorConfig string `envconfig:"CALCULATOR_CONFIG"`
	Timezone         string `envconfig:"APP_TIMEZONE" default:"Asia/Jakarta"`
}

var (
	cfg     Config
	once    sync.Once
	loadErr error
)

// Load reads .env (when present) and the process environment exactly once.
func Load(logger logrus.FieldLogger) (*Config, error) {
	once.Do(func() {
		if e := godotenv.Load(); e != nil && !os.IsNotExist(e) {
			logger.Warnf("Error loading .env file (but continuing): %v", e)
		} else if e == nil {
			logger.Info("Loaded configuration from .env file")
		}
		loadErr = envconfig.Process("", &cfg)
	})
	if loadErr != nil {
		return nil, fmt.Errorf("process environment: %w", loadErr)
	}
	return &cfg, nil
}

// Location resolves APP_TIMEZONE, which defines calendar days for quotas and
// summaries. Unknown zones fall back to the process local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DSN prefers DATABASE_DSN and otherwise assembles one from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
