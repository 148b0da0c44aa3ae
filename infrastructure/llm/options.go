package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Valid ranges for common request parameters, shared by every provider.
const (
	MinTemperature = 0.0
	// MaxTemperature accommodates providers like Gemini that accept up to 2.0.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = -2.0
	MaxPenalty     = 2.0

	MinTimeout = 1 * time.Second
	MaxTimeout = 10 * time.Minute

	// DefaultMaxTokens is the generation budget used when a request does not
	// set max_tokens.
	DefaultMaxTokens = 8192
)

// ExtractOptionalInt extracts an integer value from options map with validation.
// Returns defaultVal if key doesn't exist, value is not numeric, or validator fails.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	intVal, ok := SafeInt(val)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(intVal) {
		return defaultVal
	}
	return intVal
}

// ExtractOptionalString extracts a string value from options map with validation.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	strVal, ok := opts[key].(string)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(strVal) {
		return defaultVal
	}
	return strVal
}

// ExtractOptionalFloat64 extracts a float64 value from options map with validation.
// Integer values are accepted so YAML-decoded options like temperature: 0 work.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	var floatVal float64
	switch v := opts[key].(type) {
	case float64:
		floatVal = v
	case float32:
		floatVal = float64(v)
	case int:
		floatVal = float64(v)
	default:
		return defaultVal
	}

	if validator != nil && !validator(floatVal) {
		return defaultVal
	}
	return floatVal
}

// IsValidTemperature checks if the temperature is within [MinTemperature, MaxTemperature].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP checks if the top_p value is within [MinTopP, MaxTopP].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

// IsPositiveInt checks if the integer value is positive.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString checks if the string is non-empty.
func IsNonEmptyString(val string) bool { return val != "" }

// ValidateBaseURL validates and normalizes a base URL string.
// An empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. A zero or
// negative value returns zero, meaning no timeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout <= 0:
		return 0
	case timeout < MinTimeout:
		return MinTimeout
	case timeout > MaxTimeout:
		return MaxTimeout
	default:
		return timeout
	}
}

// SafeFloat32 converts a numeric value to float32, failing on overflow.
func SafeFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		if v > 3.4e38 || v < -3.4e38 {
			return 0, false
		}
		return float32(v), true
	case int:
		return float32(v), true
	default:
		return 0, false
	}
}

// SafeInt converts a numeric value to int, failing on NaN or overflow.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != v {
			return 0, false
		}
		const maxInt = int(^uint(0) >> 1)
		const minInt = -maxInt - 1
		if v > float64(maxInt) || v < float64(minInt) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 clamps val into [lo, hi].
func ClampFloat64(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
