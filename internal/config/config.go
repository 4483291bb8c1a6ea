package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSchemaURL is the published 360Giving grant schema.
const DefaultSchemaURL = "https://raw.githubusercontent.com/ThreeSixtyGiving/standard/master/schema/360-giving-schema.json"

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Documents DocumentsConfig `yaml:"documents" mapstructure:"documents"`
	Metadata  MetadataConfig  `yaml:"metadata" mapstructure:"metadata"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SchemaConfig locates the grant schema and lists the recommended fields.
type SchemaConfig struct {
	URL         string   `yaml:"url" mapstructure:"url"`
	LocalPath   string   `yaml:"local_path" mapstructure:"local_path"`
	Recommended []string `yaml:"recommended" mapstructure:"recommended"`
}

// DocumentsConfig configures how record documents are counted.
type DocumentsConfig struct {
	Wrapper     string `yaml:"wrapper" mapstructure:"wrapper"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
	SkipInvalid bool   `yaml:"skip_invalid" mapstructure:"skip_invalid"`
}

// MetadataConfig configures the corpus summary.
type MetadataConfig struct {
	Identifier string `yaml:"identifier" mapstructure:"identifier"`
}

// OutputConfig configures where report tables are written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures downloads of the archive and schema.
type FetchConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("schema.url", DefaultSchemaURL)
	v.SetDefault("schema.local_path", "360-giving-schema.json")
	v.SetDefault("schema.recommended", []string{"grantProgramme", "beneficiaryLocation", "dataSource", "dateModified"})
	v.SetDefault("documents.wrapper", "grants")
	v.SetDefault("documents.workers", 4)
	v.SetDefault("documents.skip_invalid", false)
	v.SetDefault("metadata.identifier", "identifier")
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.format", "csv")
	v.SetDefault("fetch.timeout_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Documents.Workers < 1 {
		return nil, eris.Errorf("config: documents.workers must be positive, got %d", cfg.Documents.Workers)
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
