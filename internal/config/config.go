package config

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Input  InputConfig  `mapstructure:"input"`
	Render RenderConfig `mapstructure:"render"`
	Report ReportConfig `mapstructure:"report"`
	Batch  BatchConfig  `mapstructure:"batch"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// InputConfig configures how dump payloads are read.
type InputConfig struct {
	// Format is auto, json or yaml.
	Format string `mapstructure:"format"`
	// MaxBytes bounds a single dump read. Zero disables the limit.
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// RenderConfig configures diagram rendering.
type RenderConfig struct {
	Format    string `mapstructure:"format"`
	Direction string `mapstructure:"direction"`
	HideIdle  bool   `mapstructure:"hide_idle"`
}

// ReportConfig configures the combined report.
type ReportConfig struct {
	Format     string `mapstructure:"format"`
	TopN       int    `mapstructure:"top_n"`
	StackDepth int    `mapstructure:"stack_depth"`
}

// BatchConfig configures multi-file analysis.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}
