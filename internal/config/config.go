// Package config loads runtime settings from defaults, an optional YAML file,
// an optional .env file and ADMISSIONS_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"admissions/internal/advisor"
	"admissions/internal/blob"
	"admissions/internal/core"
)

// EnvPrefix namespaces environment overrides, e.g. ADMISSIONS_STORAGE_DRIVER.
const EnvPrefix = "ADMISSIONS"

// Config is the full runtime configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig selects the admission state backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory json sqlite postgres"`
	JSONPath    string `mapstructure:"json_path"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// BlobConfig selects the archive for backups and reports.
type BlobConfig struct {
	Driver string        `mapstructure:"driver" validate:"oneof=fs s3 memory"`
	FSRoot string        `mapstructure:"fs_root"`
	S3     blob.S3Config `mapstructure:"s3"`
}

// FeesConfig holds the payment defaults.
type FeesConfig struct {
	Standard float64 `mapstructure:"standard" validate:"gt=0"`
}

// InventoryConfig holds the form stock used when seeding.
type InventoryConfig struct {
	Initial int `mapstructure:"initial" validate:"gte=0"`
}

// HTTPConfig configures the dashboard server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// BackupConfig drives scheduled exports. An empty schedule disables them.
type BackupConfig struct {
	Schedule string `mapstructure:"schedule"`
	Keep     int    `mapstructure:"keep" validate:"gte=0"`
	Roster   bool   `mapstructure:"roster"`
}

// AdvisorConfig selects the advisory summariser.
type AdvisorConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=none local gemini"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(core.StorageJSON))
	v.SetDefault("storage.json_path", "shs_admission_data_v1.json")
	v.SetDefault("storage.sqlite_path", "admissions.db")
	v.SetDefault("storage.postgres_dsn", "postgres://localhost/admissions?sslmode=disable")

	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "./archive")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.session_token", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.prefix", "")

	v.SetDefault("fees.standard", core.DefaultStandardFee)
	v.SetDefault("inventory.initial", 150)
	v.SetDefault("http.addr", "127.0.0.1:8080")

	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.keep", 14)
	v.SetDefault("backup.roster", false)

	v.SetDefault("advisor.provider", string(advisor.ProviderLocal))
	v.SetDefault("advisor.gemini_api_key", "")
	v.SetDefault("advisor.model", "gemini-3-flash-preview")
	v.SetDefault("advisor.base_url", "")
	v.SetDefault("advisor.timeout", "20s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. path names a YAML file; when empty, config.yaml
// is looked up in ./config and the working directory and may be absent. A
// .env file in the working directory is applied to the environment first.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.Advisor.Provider = strings.ToLower(strings.TrimSpace(c.Advisor.Provider))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
			return fmt.Errorf("invalid config %s: failed %s %s", key, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Blob.Driver == string(blob.DriverS3) && strings.TrimSpace(c.Blob.S3.Bucket) == "" {
		return errors.New("invalid config blob.s3.bucket: required when blob.driver is s3")
	}
	if c.Advisor.Provider == string(advisor.ProviderGemini) && strings.TrimSpace(c.Advisor.GeminiAPIKey) == "" {
		return errors.New("invalid config advisor.gemini_api_key: required when advisor.provider is gemini")
	}
	return nil
}

// StorageOptions maps the storage section onto the core backend selector.
func (c *Config) StorageOptions() core.StorageConfig {
	initial := c.Inventory.Initial
	return core.StorageConfig{
		Driver:           core.StorageDriver(c.Storage.Driver),
		JSONPath:         c.Storage.JSONPath,
		SQLitePath:       c.Storage.SQLitePath,
		PostgresDSN:      c.Storage.PostgresDSN,
		InitialInventory: &initial,
	}
}

// BlobOptions maps the blob section onto the archive factory.
func (c *Config) BlobOptions() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// AdvisorOptions maps the advisor section onto the summariser factory.
func (c *Config) AdvisorOptions() advisor.Config {
	return advisor.Config{
		Provider:     advisor.Provider(c.Advisor.Provider),
		GeminiAPIKey: c.Advisor.GeminiAPIKey,
		Model:        c.Advisor.Model,
		BaseURL:      c.Advisor.BaseURL,
	}
}
