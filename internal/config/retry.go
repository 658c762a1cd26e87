package config

import "git.home.luguber.info/inful/tails/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer("retry backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning
// empty string for unknown input.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}
