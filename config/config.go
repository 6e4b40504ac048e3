package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Configuration holds everything the server reads from the environment.
type Configuration struct {
	Address string `env:"ADDRESS" envDefault:":8000"`
	GoEnv   string `env:"GO_ENV" envDefault:"development"`
	Domain  string `env:"DOMAIN" envDefault:"localhost"`

	MongoURI    string `env:"MONGODB_URI,required"`
	MongoDBName string `env:"MONGODB_DBNAME" envDefault:"civictriage"`

	RedisAddress  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	IssueRateLimit int           `env:"ISSUE_RATE_LIMIT" envDefault:"5"`
	IssueRateQueue string        `env:"REDIS_QUEUE_FOR_ISSUE_LIMIT" envDefault:"issue_limit"`
	LockBackend    string        `env:"LOCK_BACKEND" envDefault:"redis"`
	IssueLockTTL   time.Duration `env:"ISSUE_LOCK_TTL" envDefault:"10s"`

	ClassifierURL     string        `env:"CLASSIFIER_URL" envDefault:"http://localhost:5000"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`
	AssessmentWorkers int           `env:"ASSESSMENT_WORKERS" envDefault:"4"`
	AssessmentQueue   int           `env:"ASSESSMENT_QUEUE" envDefault:"256"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	GeocodePrecision    int    `env:"GEOCODE_STORAGE_PRECISION" envDefault:"9"`
	PriorityWeightsFile string `env:"PRIORITY_WEIGHTS_FILE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`
}

func (c *Configuration) Production() bool { return c.GoEnv == "production" }

// Load reads the given env files (default .env) and parses the environment.
// A missing file is not an error; variables may come from the process.
func Load(files ...string) (*Configuration, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Configuration
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Configuration) validate() error {
	switch c.LockBackend {
	case "redis", "local":
	default:
		return fmt.Errorf("LOCK_BACKEND must be redis or local, got %q", c.LockBackend)
	}
	if c.GeocodePrecision < 1 || c.GeocodePrecision > 10 {
		return fmt.Errorf("GEOCODE_STORAGE_PRECISION must be between 1 and 10, got %d", c.GeocodePrecision)
	}
	if c.IssueRateLimit < 0 {
		return fmt.Errorf("ISSUE_RATE_LIMIT must not be negative")
	}
	return nil
}
