// Package config loads reportsmith settings with Viper from a YAML file,
// REPORTSMITH_ environment variables and command-line flags.
//
// Sections cover the HTTP server, the templates and styles directories,
// rendering (base address, script reference, execution bounds), the
// admission scanners, the external generation service, the data payload
// source and logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. REPORTSMITH_SERVER_PORT.
const EnvPrefix = "REPORTSMITH"

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Templates  TemplatesConfig  `mapstructure:"templates" yaml:"templates"`
	Styles     StylesConfig     `mapstructure:"styles" yaml:"styles"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render"`
	Scanner    ScannerConfig    `mapstructure:"scanner" yaml:"scanner"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Data       DataConfig       `mapstructure:"data" yaml:"data"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// MaxUploadBytes bounds template uploads and JSON render bodies
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	// RateLimit is requests per minute per client on /api/, 0 disables
	RateLimit   int    `mapstructure:"rate_limit" yaml:"rate_limit"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

type TemplatesConfig struct {
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	Watch    bool          `mapstructure:"watch" yaml:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type StylesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type RenderConfig struct {
	// BaseURL replaces [!MY_API_SRV] in rendered markup
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	ScriptSrc        string        `mapstructure:"script_src" yaml:"script_src"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxCallStackSize int           `mapstructure:"max_call_stack_size" yaml:"max_call_stack_size"`
}

type ScannerConfig struct {
	// FailOpen accepts sources the structural parser cannot handle
	FailOpen    bool `mapstructure:"fail_open" yaml:"fail_open"`
	ReportLimit int  `mapstructure:"report_limit" yaml:"report_limit"`
}

type GenerationConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"-"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DataConfig struct {
	// SampleFile is a JSON or YAML payload used when APIURL is empty
	SampleFile string `mapstructure:"sample_file" yaml:"sample_file"`
	APIURL     string `mapstructure:"api_url" yaml:"api_url"`
	APIKey     string `mapstructure:"api_key" yaml:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers every key so environment overrides apply to it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:4173"})
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.environment", "development")

	v.SetDefault("templates.dir", "./templates")
	v.SetDefault("templates.watch", true)
	v.SetDefault("templates.debounce", 300*time.Millisecond)

	v.SetDefault("styles.dir", "./styles")

	v.SetDefault("render.base_url", "")
	v.SetDefault("render.script_src", "/js/report.js")
	v.SetDefault("render.timeout", 5*time.Second)
	v.SetDefault("render.max_call_stack_size", 1024)

	v.SetDefault("scanner.fail_open", false)
	v.SetDefault("scanner.report_limit", 5)

	v.SetDefault("generation.endpoint", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "gpt-4o-mini")
	v.SetDefault("generation.timeout", 60*time.Second)

	v.SetDefault("data.sample_file", "")
	v.SetDefault("data.api_url", "")
	v.SetDefault("data.api_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv enables REPORTSMITH_ overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, "decoding configuration")
	}

	// Comma-separated env values arrive as a single string
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)

	if config.Scanner.ReportLimit <= 0 {
		config.Scanner.ReportLimit = 5
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.WrapConfig(err, "invalid configuration")
	}

	return &config, nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validation.ValidatePath(config.Templates.Dir); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}
	if config.Templates.Debounce < 0 {
		return fmt.Errorf("templates config: negative debounce %s", config.Templates.Debounce)
	}

	if err := validation.ValidatePath(config.Styles.Dir); err != nil {
		return fmt.Errorf("styles config: %w", err)
	}

	if config.Render.BaseURL != "" {
		if err := validation.ValidateURL(config.Render.BaseURL); err != nil {
			return fmt.Errorf("render config: base_url: %w", err)
		}
	}
	if config.Render.Timeout < 0 {
		return fmt.Errorf("render config: negative timeout %s", config.Render.Timeout)
	}
	if config.Render.MaxCallStackSize < 0 {
		return fmt.Errorf("render config: negative max_call_stack_size %d", config.Render.MaxCallStackSize)
	}

	if config.Generation.Endpoint != "" {
		if err := validation.ValidateURL(config.Generation.Endpoint); err != nil {
			return fmt.Errorf("generation config: endpoint: %w", err)
		}
	}

	if config.Data.APIURL != "" {
		if err := validation.ValidateURL(config.Data.APIURL); err != nil {
			return fmt.Errorf("data config: api_url: %w", err)
		}
	}

	switch strings.ToLower(config.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	if config.RateLimit < 0 {
		return fmt.Errorf("negative rate_limit %d", config.RateLimit)
	}

	if config.MaxUploadBytes < 0 {
		return fmt.Errorf("negative max_upload_bytes %d", config.MaxUploadBytes)
	}

	return nil
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
