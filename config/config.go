// Package config loads lakehouse settings from the environment and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRegion    = "us-east-1"
	DefaultWarehouse = "s3a://lakehouse/warehouse"
	DefaultNamespace = "template_provider"
	EnvPrefix        = "LAKEHOUSE"
)

// Settings are the resolved connection settings. Treat as immutable.
type Settings struct {
	Endpoint  string `mapstructure:"s3_endpoint"`
	AccessKey string `mapstructure:"s3_access_key"`
	SecretKey string `mapstructure:"s3_secret_key"`
	Region    string `mapstructure:"s3_region"`
	Warehouse string `mapstructure:"warehouse_path"`
	Namespace string `mapstructure:"namespace"`
}

// Config is everything a process needs: connection settings plus runtime knobs.
type Config struct {
	Settings      `mapstructure:",squash"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	LogLevel      string        `mapstructure:"log_level"`
	Port          int           `mapstructure:"port"`
	FlightSQLPort int           `mapstructure:"flightsql_port"`
	IngestWorkers int           `mapstructure:"ingest_workers"`
}

// Description is the non-secret view of Settings.
type Description struct {
	Namespace string `json:"namespace"`
	Warehouse string `json:"warehouse"`
	Endpoint  string `json:"s3_endpoint"`
	Region    string `json:"s3_region"`
}

var keys = []string{
	"s3_endpoint", "s3_access_key", "s3_secret_key", "s3_region", "warehouse_path", "namespace",
	"query_timeout", "log_level", "port", "flightsql_port", "ingest_workers",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("s3_endpoint", "http://localhost:9000")
	v.SetDefault("s3_access_key", "admin")
	v.SetDefault("s3_secret_key", "password")
	v.SetDefault("s3_region", DefaultRegion)
	v.SetDefault("warehouse_path", DefaultWarehouse)
	v.SetDefault("namespace", DefaultNamespace)
	v.SetDefault("query_timeout", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 7972)
	v.SetDefault("flightsql_port", 8082)
	v.SetDefault("ingest_workers", 4)
}

// Load resolves configuration from LAKEHOUSE_* environment variables and, when
// path is not empty, a config file. Environment wins over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}
	// LAKEHOUSE_WAREHOUSE is the historical name of warehouse_path.
	if err := v.BindEnv("warehouse_path", EnvPrefix+"_WAREHOUSE_PATH", EnvPrefix+"_WAREHOUSE"); err != nil {
		return nil, fmt.Errorf("bind warehouse_path: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout < 0 {
		return nil, fmt.Errorf("query_timeout must not be negative")
	}
	if cfg.IngestWorkers < 1 {
		cfg.IngestWorkers = 1
	}
	return &cfg, nil
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.Warehouse == "" {
		return fmt.Errorf("warehouse_path is required")
	}
	if s.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if s.UsesS3() && s.Endpoint != "" {
		if _, err := url.Parse(s.endpointURL()); err != nil {
			return fmt.Errorf("invalid s3_endpoint %q: %w", s.Endpoint, err)
		}
	}
	return nil
}

// Describe returns the settings without credentials.
func (s Settings) Describe() Description {
	return Description{
		Namespace: s.Namespace,
		Warehouse: s.Warehouse,
		Endpoint:  s.Endpoint,
		Region:    s.Region,
	}
}

// String keeps credentials out of %v and %s formatting.
func (s Settings) String() string {
	return fmt.Sprintf("namespace=%s warehouse=%s endpoint=%s region=%s",
		s.Namespace, s.Warehouse, s.Endpoint, s.Region)
}

// GoString keeps credentials out of %#v formatting.
func (s Settings) GoString() string {
	return "config.Settings{" + s.String() + "}"
}

// WarehouseURI returns the warehouse root as read by DuckDB: s3a:// becomes
// s3://, file:// is stripped, and trailing slashes are removed.
func (s Settings) WarehouseURI() string {
	w := strings.TrimSpace(s.Warehouse)
	switch {
	case strings.HasPrefix(w, "s3a://"):
		w = "s3://" + strings.TrimPrefix(w, "s3a://")
	case strings.HasPrefix(w, "s3n://"):
		w = "s3://" + strings.TrimPrefix(w, "s3n://")
	case strings.HasPrefix(w, "file://"):
		w = strings.TrimPrefix(w, "file://")
	}
	if len(w) > 1 {
		w = strings.TrimRight(w, "/")
	}
	return w
}

// UsesS3 reports whether the warehouse lives in object storage.
func (s Settings) UsesS3() bool {
	return strings.HasPrefix(s.WarehouseURI(), "s3://")
}

// EndpointHost returns the endpoint without its scheme, as DuckDB expects.
func (s Settings) EndpointHost() string {
	e := strings.TrimPrefix(s.Endpoint, "http://")
	e = strings.TrimPrefix(e, "https://")
	return strings.TrimRight(e, "/")
}

// UseSSL is true unless the endpoint explicitly says http://.
func (s Settings) UseSSL() bool {
	return !strings.HasPrefix(s.Endpoint, "http://")
}

// EndpointURL returns the endpoint with a scheme, defaulting to https.
func (s Settings) EndpointURL() string {
	return s.endpointURL()
}

func (s Settings) endpointURL() string {
	if s.Endpoint == "" {
		return ""
	}
	if strings.HasPrefix(s.Endpoint, "http://") || strings.HasPrefix(s.Endpoint, "https://") {
		return strings.TrimRight(s.Endpoint, "/")
	}
	return "https://" + strings.TrimRight(s.Endpoint, "/")
}
