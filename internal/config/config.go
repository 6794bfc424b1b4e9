package config

import (
	"fmt"
	"log"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"grantpilot-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	GenerationModel     string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	// Decision policy
	CognitiveThreshold  float64       `envconfig:"COGNITIVE_THRESHOLD" default:"0.6"`
	CompetencyThreshold float64       `envconfig:"COMPETENCY_THRESHOLD" default:"0.6"`
	MaxRegenerations    int           `envconfig:"MAX_REGENERATIONS" default:"1"`
	GrantTTL            time.Duration `envconfig:"GRANT_TTL" default:"24h"`

	// Retrieval
	TopK int `envconfig:"RETRIEVAL_TOP_K" default:"5"`

	// Generation service
	GenerationRetries int           `envconfig:"GENERATION_RETRIES" default:"2"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`

	// Sensitivity scanner
	CulturalTermThreshold   int      `envconfig:"CULTURAL_TERM_THRESHOLD" default:"3"`
	FinancialDigitThreshold int      `envconfig:"FINANCIAL_DIGIT_THRESHOLD" default:"9"`
	CulturalVocabulary      []string `envconfig:"CULTURAL_VOCABULARY"`

	// Quality evaluator: sub-metric weights and targets for the cognitive
	// score, map syntax "metric:value,metric:value"
	CognitiveWeights map[string]float64 `envconfig:"COGNITIVE_WEIGHTS"`
	MetricTargets    map[string]float64 `envconfig:"METRIC_TARGETS"`
	JargonVocabulary []string           `envconfig:"JARGON_VOCABULARY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("GRANTPILOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.CulturalVocabulary) == 0 {
		c.CulturalVocabulary = DefaultCulturalVocabulary()
	}
	if len(c.JargonVocabulary) == 0 {
		c.JargonVocabulary = DefaultJargonVocabulary()
	}
	if len(c.CognitiveWeights) == 0 {
		c.CognitiveWeights = DefaultCognitiveWeights()
	}
	if len(c.MetricTargets) == 0 {
		c.MetricTargets = DefaultMetricTargets()
	}
}

// Validate checks the policy configuration. Violations are fatal at startup,
// not per-request.
func (c *Config) Validate() error {
	if c.CognitiveThreshold < 0 || c.CognitiveThreshold > 1 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "cognitive threshold must be in [0,1]")
	}
	if c.CompetencyThreshold < 0 || c.CompetencyThreshold > 1 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "competency threshold must be in [0,1]")
	}
	if c.MaxRegenerations < 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "max regenerations cannot be negative")
	}
	if c.GrantTTL <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "grant TTL must be positive")
	}
	if c.TopK <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "retrieval top-k must be positive")
	}
	if c.GenerationTimeout <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "generation timeout must be positive")
	}
	if c.GenerationRetries < 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "generation retries cannot be negative")
	}
	if c.EmbeddingDimensions <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "embedding dimensions must be positive")
	}
	if c.CulturalTermThreshold <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "cultural term threshold must be positive")
	}
	if c.FinancialDigitThreshold <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "financial digit threshold must be positive")
	}

	var weightSum float64
	for metric, w := range c.CognitiveWeights {
		if w < 0 {
			return domain.NewDomainError(domain.ErrCodeConfiguration,
				fmt.Sprintf("cognitive weight for %q cannot be negative", metric))
		}
		weightSum += w
	}
	if weightSum == 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "cognitive weights must not sum to zero")
	}

	for metric, target := range c.MetricTargets {
		if target < 0 || target > 1 {
			return domain.NewDomainError(domain.ErrCodeConfiguration,
				fmt.Sprintf("metric target for %q must be in [0,1]", metric))
		}
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
