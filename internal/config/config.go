package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const DefaultPort = 4433

type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Runtime  RuntimeConfig  `yaml:"runtime" toml:"runtime"`
	Upstream UpstreamConfig `yaml:"upstream" toml:"upstream"`
	Bus      BusConfig      `yaml:"bus" toml:"bus"`
	Protocol ProtocolConfig `yaml:"protocol" toml:"protocol"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

type ServerConfig struct {
	Host           string        `yaml:"host" toml:"host"`
	Port           int           `yaml:"port" toml:"port"`
	TLSCert        string        `yaml:"tls_cert" toml:"tls_cert"`
	TLSKey         string        `yaml:"tls_key" toml:"tls_key"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`
	MaxConnections int           `yaml:"max_connections" toml:"max_connections"`
	WriteTimeout   time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval" toml:"ping_interval"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// Runtime drivers.
const (
	DriverDocker  = "docker"
	DriverLibvirt = "libvirt"
	DriverMock    = "mock"
)

type RuntimeConfig struct {
	Driver         string        `yaml:"driver" toml:"driver"`
	DockerHost     string        `yaml:"docker_host" toml:"docker_host"`
	LibvirtURI     string        `yaml:"libvirt_uri" toml:"libvirt_uri"`
	CommandTimeout time.Duration `yaml:"command_timeout" toml:"command_timeout"`
	MockInterval   time.Duration `yaml:"mock_interval" toml:"mock_interval"`
}

type UpstreamConfig struct {
	RetryInterval    time.Duration `yaml:"retry_interval" toml:"retry_interval"`
	RetryMultiplier  float64       `yaml:"retry_multiplier" toml:"retry_multiplier"`
	RetryJitter      float64       `yaml:"retry_jitter" toml:"retry_jitter"`
	RetryMaxInterval time.Duration `yaml:"retry_max_interval" toml:"retry_max_interval"`
}

type BusConfig struct {
	Capacity int `yaml:"capacity" toml:"capacity"`
}

type ProtocolConfig struct {
	ErrorReplies bool `yaml:"error_replies" toml:"error_replies"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultPort,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Runtime: RuntimeConfig{
			Driver:       DriverDocker,
			LibvirtURI:   "qemu:///system",
			MockInterval: 2 * time.Second,
		},
		Upstream: UpstreamConfig{
			RetryInterval:    10 * time.Second,
			RetryMultiplier:  1.0,
			RetryMaxInterval: time.Minute,
		},
		Bus: BusConfig{
			Capacity: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads path over the defaults. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
// An empty path also yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Server.PingInterval < 0 {
		errs = append(errs, errors.New("server.ping_interval must not be negative"))
	}
	switch c.Runtime.Driver {
	case DriverDocker, DriverLibvirt, DriverMock:
	default:
		errs = append(errs, fmt.Errorf("runtime.driver %q is not one of docker, libvirt, mock", c.Runtime.Driver))
	}
	if c.Upstream.RetryInterval <= 0 {
		errs = append(errs, errors.New("upstream.retry_interval must be positive"))
	}
	if c.Upstream.RetryMultiplier < 1 {
		errs = append(errs, errors.New("upstream.retry_multiplier must be at least 1"))
	}
	if c.Upstream.RetryJitter < 0 || c.Upstream.RetryJitter >= 1 {
		errs = append(errs, errors.New("upstream.retry_jitter must be in [0, 1)"))
	}
	if c.Bus.Capacity < 1 {
		errs = append(errs, errors.New("bus.capacity must be at least 1"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Diff lists the settings that differ between old and new as
// "section.key: old → new", sorted by key.
func Diff(old, new *Config) []string {
	a, b := flatten(old), flatten(new)
	var changes []string
	for key, av := range a {
		if bv := b[key]; av != bv {
			changes = append(changes, fmt.Sprintf("%s: %s → %s", key, av, bv))
		}
	}
	sort.Strings(changes)
	return changes
}

func flatten(cfg *Config) map[string]string {
	out := make(map[string]string)
	walk(reflect.ValueOf(cfg).Elem(), "", out)
	return out
}

func walk(v reflect.Value, prefix string, out map[string]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if prefix != "" {
			name = prefix + "." + name
		}
		f := v.Field(i)
		if f.Kind() == reflect.Struct {
			walk(f, name, out)
			continue
		}
		out[name] = fmt.Sprint(f.Interface())
	}
}
