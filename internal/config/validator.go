package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateInput(&cfg.Input)
	v.validateRender(&cfg.Render)
	v.validateReport(&cfg.Report)
	v.validateBatch(&cfg.Batch)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) oneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addError(field, value, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) validateLog(cfg *LogConfig) {
	v.oneOf("log.level", cfg.Level, "debug", "info", "warn", "error")
	v.oneOf("log.format", cfg.Format, "auto", "text", "json")
}

func (v *Validator) validateInput(cfg *InputConfig) {
	v.oneOf("input.format", cfg.Format, "auto", "json", "yaml")
	if cfg.MaxBytes < 0 {
		v.addError("input.max_bytes", cfg.MaxBytes, "must be non-negative")
	}
}

func (v *Validator) validateRender(cfg *RenderConfig) {
	// Per-command format support is checked by the renderers.
	v.oneOf("render.format", cfg.Format, "mermaid", "dot", "json", "table")
	v.oneOf("render.direction", cfg.Direction, "LR", "RL", "TB", "BT")
}

func (v *Validator) validateReport(cfg *ReportConfig) {
	v.oneOf("report.format", cfg.Format, "markdown", "html")
	if cfg.TopN <= 0 {
		v.addError("report.top_n", cfg.TopN, "must be positive")
	}
	if cfg.StackDepth < 0 {
		v.addError("report.stack_depth", cfg.StackDepth, "must be non-negative")
	}
}

func (v *Validator) validateBatch(cfg *BatchConfig) {
	if cfg.Concurrency <= 0 {
		v.addError("batch.concurrency", cfg.Concurrency, "must be positive")
	}
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
