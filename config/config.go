// Package config holds the explicit configuration for the whole engine. Each
// component receives its own sub-struct at construction; nothing registers
// itself into shared global state.
package config

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/xsp-lib/xsp/errortypes"
	"github.com/xsp-lib/xsp/metrics"
	"github.com/xsp-lib/xsp/policy"
	"github.com/xsp-lib/xsp/resolver"
	"github.com/xsp-lib/xsp/respcache"
	"github.com/xsp-lib/xsp/state"
	"github.com/xsp-lib/xsp/transport"
)

// Configuration is the full engine configuration.
type Configuration struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AdminPort int    `mapstructure:"admin_port"`

	Resolver  resolver.Config  `mapstructure:"resolver"`
	Transport transport.Config `mapstructure:"transport"`
	Cache     respcache.Config `mapstructure:"cache"`
	State     state.Config     `mapstructure:"state"`
	Policy    policy.Config    `mapstructure:"policy"`
	Metrics   metrics.Config   `mapstructure:"metrics"`
}

// New unmarshals and validates the configuration held by v.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (cfg *Configuration) validate() error {
	var errs []error
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in (0, 65535], got %d", cfg.Port))
	}
	if cfg.AdminPort <= 0 || cfg.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("admin_port must be in (0, 65535], got %d", cfg.AdminPort))
	}
	if cfg.Resolver.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("resolver.max_depth cannot be negative, got %d", cfg.Resolver.MaxDepth))
	}
	if cfg.Cache.DefaultTTLS <= 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl_s must be positive, got %d", cfg.Cache.DefaultTTLS))
	}
	if len(errs) > 0 {
		return errortypes.NewAggregateErrors("invalid configuration", errs)
	}
	return nil
}

// LogGeneralInfo writes the effective configuration to the app log at
// startup, as yaml for readability.
func (cfg *Configuration) LogGeneralInfo() {
	dump, err := yaml.Marshal(cfg)
	if err != nil {
		glog.Warningf("Could not render configuration for logging: %v", err)
		return
	}
	glog.Infof("Effective configuration:\n%s", dump)
}

// SetupViper sets the default values and lookup paths. Values resolve in the
// usual viper order: explicit set, environment (XSP_ prefix), config file,
// default.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)

	v.SetDefault("resolver.max_depth", resolver.DefaultMaxDepth)
	v.SetDefault("resolver.per_hop_timeout_ms", 0)

	v.SetDefault("transport.fetch_timeout_ms", 2000)
	v.SetDefault("transport.max_idle_conns", 10)
	v.SetDefault("transport.max_body_bytes", 1<<20)

	v.SetDefault("cache.type", "lru")
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.size_bytes", 64*1024*1024)
	v.SetDefault("cache.default_ttl_s", 300)
	v.SetDefault("cache.sweep_interval_s", 60)

	v.SetDefault("state.type", "memory")
	v.SetDefault("state.redis.addr", "")
	v.SetDefault("state.redis.db", 0)
	v.SetDefault("state.redis.username", "")
	v.SetDefault("state.redis.password", "")
	v.SetDefault("state.redis.timeout_ms", 200)
	v.SetDefault("state.memcache.hosts", []string{})

	v.SetDefault("policy.fail_closed", false)

	v.SetDefault("metrics.influx.enabled", false)
	v.SetDefault("metrics.influx.host", "")
	v.SetDefault("metrics.influx.database", "")
	v.SetDefault("metrics.influx.measurement", "xsp")
	v.SetDefault("metrics.influx.username", "")
	v.SetDefault("metrics.influx.password", "")
	v.SetDefault("metrics.influx.interval_seconds", 10)

	v.SetEnvPrefix("XSP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.ReadInConfig()
}
