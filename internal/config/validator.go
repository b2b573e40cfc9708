package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ValidationError is a single failed config field
type ValidationError struct {
	Field   string
	Tag     string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every failed field
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("config validation failed:")
	for _, err := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

var validate = validator.New()

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks cfg and returns ValidationErrors describing every problem
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range fieldErrors {
			errs = append(errs, &ValidationError{
				Field:   fieldName(fe.Namespace()),
				Tag:     fe.Tag(),
				Message: translateError(fe),
			})
		}
	}

	if cfg.History.Enabled && cfg.History.CleanupSchedule != "" {
		if _, err := scheduleParser.Parse(cfg.History.CleanupSchedule); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "history.cleanupschedule",
				Tag:     "cron",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if cfg.Ledger.DefaultListLimit > cfg.Ledger.Capacity {
		errs = append(errs, &ValidationError{
			Field:   "ledger.defaultlistlimit",
			Tag:     "ltefield",
			Message: "must not exceed ledger.capacity",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fieldName turns "Config.History.Path" into "history.path"
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func translateError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "gt":
		return fmt.Sprintf("value must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}
