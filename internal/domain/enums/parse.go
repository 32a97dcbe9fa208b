package enums

import (
	"fmt"
	"strings"
)

// ValidationError is returned when an external value is not one of the
// allowed literals for a field.
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("invalid %s %q: must be one of %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// Parse matches raw against allowed ignoring case and surrounding space and
// returns the canonical literal.
func Parse[T ~string](field, raw string, allowed []T) (T, error) {
	value := strings.TrimSpace(raw)
	for _, candidate := range allowed {
		if strings.EqualFold(value, string(candidate)) {
			return candidate, nil
		}
	}
	names := make([]string, len(allowed))
	for i, candidate := range allowed {
		names[i] = string(candidate)
	}
	var zero T
	return zero, &ValidationError{Field: field, Value: value, Allowed: names}
}

// ParseOptional returns fallback when raw is blank.
func ParseOptional[T ~string](field, raw string, allowed []T, fallback T) (T, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return Parse(field, raw, allowed)
}

func ParseJurisdiction(raw string) (Jurisdiction, error) {
	return Parse("jurisdiction", raw, Jurisdictions)
}

func ParseRequestStatus(raw string) (RequestStatus, error) {
	return Parse("status", raw, RequestStatuses)
}

func ParseRequestType(raw string) (RequestType, error) {
	return ParseOptional("requestType", raw, RequestTypes, RequestIndividual)
}

func ParsePriority(raw string) (Priority, error) {
	return ParseOptional("priority", raw, Priorities, PriorityNormal)
}

func ParseTemplateType(raw string) (TemplateType, error) {
	return ParseOptional("templateType", raw, TemplateTypes, TemplateInitialRequest)
}

func ParseCompanyCategory(raw string) (CompanyCategory, error) {
	return Parse("category", raw, CompanyCategories)
}

func ParseDifficulty(raw string) (Difficulty, error) {
	return Parse("difficulty", raw, Difficulties)
}
