// =============================================================================
// 📦 FetchFlow 配置
// =============================================================================
// 统一配置结构与默认值
// =============================================================================
package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/fetchflow/provider/cacheprov"
	"github.com/BaSui01/fetchflow/provider/httpprov"
	"github.com/BaSui01/fetchflow/types"
)

// Config 是 FetchFlow 的完整配置结构
type Config struct {
	// Engine 引擎配置
	Engine types.EngineConfig `yaml:"engine" env:"ENGINE"`

	// Provider IO 后端配置
	Provider ProviderConfig `yaml:"provider" env:"PROVIDER"`

	// Journal 抓取日志配置
	Journal JournalConfig `yaml:"journal" env:"JOURNAL"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ProviderConfig IO 后端配置
type ProviderConfig struct {
	// 后端类型: fs, http, blob
	Backend string `yaml:"backend" env:"BACKEND"`

	// 文件系统后端的根目录（可选）
	Root string `yaml:"root" env:"ROOT"`

	// blob 后端的 bucket URL（例如 s3://bucket、mem://）
	BucketURL string `yaml:"bucket_url" env:"BUCKET_URL"`

	// HTTP 后端配置
	HTTP httpprov.Config `yaml:"http" env:"HTTP"`

	// Cache 内容缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`
}

// CacheConfig 内容缓存配置
type CacheConfig struct {
	// 是否启用读穿缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Redis 读穿缓存配置
	cacheprov.Config `yaml:",inline"`
}

// JournalConfig 抓取日志配置
type JournalConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// SQLite 数据库路径
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 📦 默认配置
// =============================================================================

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine: types.DefaultEngineConfig(),
		Provider: ProviderConfig{
			Backend: "fs",
			HTTP:    httpprov.DefaultConfig(),
			Cache: CacheConfig{
				Enabled: false,
				Config:  cacheprov.DefaultConfig(),
			},
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "fetchflow.db",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "fetchflow",
			SampleRate:   1.0,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Provider.Backend {
	case "fs", "http", "blob":
	default:
		errs = append(errs, fmt.Sprintf("unknown provider backend %q", c.Provider.Backend))
	}
	if c.Provider.Backend == "blob" && c.Provider.BucketURL == "" {
		errs = append(errs, "blob backend requires bucket_url")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal requires a database path")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// =============================================================================
// 📝 日志构建
// =============================================================================

// Build 根据日志配置构建 zap logger
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if c.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if len(c.OutputPaths) > 0 {
		zapCfg.OutputPaths = c.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
