package model

import "time"

// MaxWorkers is the hard cap on concurrent documents; the cloud OCR quota does
// not tolerate more than three in-flight requests per project.
const MaxWorkers = 3

// Config is the complete labtext configuration
type Config struct {
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Parser       ParserConfig       `yaml:"parser" mapstructure:"parser"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
}

// OCRConfig selects and tunes the text extraction collaborator
type OCRConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // documentai, openai, local, text
	Fallback    bool          `yaml:"fallback" mapstructure:"fallback"` // Fall back to local PDF extraction
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`

	DocumentAI DocumentAIConfig `yaml:"documentai" mapstructure:"documentai"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
}

// DocumentAIConfig identifies a Google Document AI OCR processor
type DocumentAIConfig struct {
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	Location        string `yaml:"location" mapstructure:"location"`
	ProcessorID     string `yaml:"processor_id" mapstructure:"processor_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty" mapstructure:"credentials_file"`
}

// OpenAIConfig configures the vision-model OCR provider
type OpenAIConfig struct {
	APIKey     string `yaml:"-" mapstructure:"api_key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig throttles calls to the OCR provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls memoization of OCR text
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ParserConfig tunes the text-to-record extraction
type ParserConfig struct {
	HospitalPhones []string `yaml:"hospital_phones" mapstructure:"hospital_phones"`
	TableFile      string   `yaml:"table_file,omitempty" mapstructure:"table_file"` // Overrides the embedded default table
	Debug          bool     `yaml:"debug" mapstructure:"debug"`                     // Include failedPatterns in output
}

// OutputConfig controls rendering
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Pretty  bool   `yaml:"pretty" mapstructure:"pretty"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LogConfig carries structured logger settings
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultHospitalPhones are the letterhead contact numbers of the report template
var DefaultHospitalPhones = []string{
	"097 840 47 89",
	"012 89 17 45",
	"012 28 60 70",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Provider:    "local",
			Fallback:    true,
			Timeout:     2 * time.Minute,
			MaxRetries:  5,
			BaseBackoff: 2 * time.Second,
			MaxBackoff:  time.Minute,
			DocumentAI: DocumentAIConfig{
				Location: "us",
			},
			OpenAI: OpenAIConfig{
				Model: "gpt-4o-mini",
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers: MaxWorkers,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         MaxWorkers,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".labtext-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Parser: ParserConfig{
			HospitalPhones: append([]string(nil), DefaultHospitalPhones...),
			Debug:          true,
		},
		Output: OutputConfig{
			Dir:    "./labtext-results",
			Pretty: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// EffectiveWorkers clamps the configured worker count to [1, MaxWorkers]
func (c ConcurrencyConfig) EffectiveWorkers() int {
	switch {
	case c.Workers <= 0:
		return 1
	case c.Workers > MaxWorkers:
		return MaxWorkers
	default:
		return c.Workers
	}
}
