package runconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var structValidator = validator.New()

// Validate checks all required constraints
// 실패 시 error 반환 (작업 시작 전 중단)
func Validate(cfg *Config) error {
	// === 구조 검증 (struct tag) ===
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{fieldPath(fe.Namespace()), describeTag(fe)}
		}
		return ValidationError{"config", err.Error()}
	}

	// === Grid ===
	if _, err := cfg.Spec(); err != nil {
		return ValidationError{"grid", err.Error()}
	}

	// === Dates (선택: CLI에서 지정 가능) ===
	if cfg.Dates.Start != "" || cfg.Dates.End != "" {
		if cfg.Dates.Start == "" || cfg.Dates.End == "" {
			return ValidationError{"dates", "start and end must be given together"}
		}
		if _, err := cfg.Days(); err != nil {
			return ValidationError{"dates", err.Error()}
		}
	}

	// === Products ===
	seen := make(map[string]bool, len(cfg.Products))
	for i, p := range cfg.Products {
		field := fmt.Sprintf("products[%d]", i)
		if seen[p.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate product %q", p.Name)}
		}
		seen[p.Name] = true

		if (p.ValidMin == nil) != (p.ValidMax == nil) {
			return ValidationError{field, "valid_min and valid_max must be given together"}
		}
		if p.ValidMin != nil && *p.ValidMin >= *p.ValidMax {
			return ValidationError{field, "valid_min must be < valid_max"}
		}
	}

	// === Combine ===
	if cfg.Combine.Enabled {
		if _, ok := cfg.Product(cfg.Combine.Primary); !ok {
			return ValidationError{"combine.primary", fmt.Sprintf("unknown product %q", cfg.Combine.Primary)}
		}
		if _, ok := cfg.Product(cfg.Combine.Second); !ok {
			return ValidationError{"combine.secondary", fmt.Sprintf("unknown product %q", cfg.Combine.Second)}
		}
		if cfg.Combine.Primary == cfg.Combine.Second {
			return ValidationError{"combine", "primary and secondary must differ"}
		}
	}

	// === Schedule ===
	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}

	return nil
}

// fieldPath converts "Config.Output.Formats[0]" to "output.formats[0]"
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
