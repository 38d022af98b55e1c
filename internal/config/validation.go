// Package config provides configuration management for the Pickwise pipeline.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	switch env {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	for sport, sc := range cfg.Sports {
		if sc.LineMin >= sc.LineMax {
			return fmt.Errorf("sport %s: line_min must be below line_max", sport)
		}
		if sc.DeviationSoft >= sc.DeviationHard {
			return fmt.Errorf("sport %s: deviation_soft must be below deviation_hard", sport)
		}
		if sc.VarianceZSoft >= sc.VarianceZHard || sc.VarianceZHard >= sc.VarianceZBlock {
			return fmt.Errorf("sport %s: variance z cutoffs must be strictly ordered soft < hard < block", sport)
		}
		if sc.ClampZ >= sc.ExtremeZ {
			return fmt.Errorf("sport %s: clamp_z must be below extreme_z", sport)
		}
		if sc.RelaxedZ <= sc.ClampZ {
			return fmt.Errorf("sport %s: relaxed_z must exceed clamp_z", sport)
		}
		if sc.MissMinorCut >= sc.MissModerateCut {
			return fmt.Errorf("sport %s: miss_minor_cut must be below miss_moderate_cut", sport)
		}
		// LEAN gates must be no stricter than PICK gates or the classifier
		// could skip straight past a qualifying tier.
		if sc.LeanGates.MinProbability > sc.PickGates.MinProbability ||
			sc.LeanGates.MinEdge > sc.PickGates.MinEdge ||
			sc.LeanGates.MinConfidence > sc.PickGates.MinConfidence ||
			sc.LeanGates.MaxVarianceZ < sc.PickGates.MaxVarianceZ ||
			sc.LeanGates.MaxDeviation < sc.PickGates.MaxDeviation {
			return fmt.Errorf("sport %s: lean gates must be looser than pick gates", sport)
		}
	}

	if cfg.IsProduction() {
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
		if !cfg.Features.PublishingEnabled {
			return fmt.Errorf("publishing must be enabled in production")
		}
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
