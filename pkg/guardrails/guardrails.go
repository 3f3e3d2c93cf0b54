// Package guardrails implements content safety checks applied at the
// boundaries of a reasoning turn: user input is screened before any model
// or tool work happens, and the final response is screened before it is
// returned.
//
// Detection is pattern-based: a small set of toxicity patterns produces a
// normalized score, and PII regexes flag emails, phone numbers, SSNs, and
// credit card numbers. Checks report a verdict and a reason; they never
// return errors.
package guardrails

import (
	"context"
	"errors"
	"regexp"

	"github.com/kwhite/agentgraph/pkg/llm"
)

// Default thresholds.
const DefaultMaxToxicityScore = 0.5

// Rejection reasons returned by checks.
const (
	ReasonInputToxic   = "Input contains inappropriate content"
	ReasonInputPII     = "Input contains potentially sensitive information"
	ReasonOutputPolicy = "Response filtered due to content policy"
	ReasonOutputToxic  = "Response contains inappropriate content"
	ReasonOutputPII    = "Response contains potentially sensitive information"
)

// toxicityPatterns score how inappropriate a text is. The score is the
// fraction of patterns that match, capped at 1.
var toxicityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hate|violence|harmful)\b`),
}

// piiPattern pairs a PII category with its detector.
// Order matters for Sanitize: earlier patterns redact first.
type piiPattern struct {
	name string
	re   *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
}

// Redaction placeholders, derived from the pattern names:
// [EMAIL_REDACTED], [PHONE_REDACTED], [SSN_REDACTED], [CREDIT_CARD_REDACTED].
var redactions = buildRedactions()

func buildRedactions() map[string]string {
	out := make(map[string]string, len(piiPatterns))
	for _, p := range piiPatterns {
		out[p.name] = "[" + upperSnake(p.name) + "_REDACTED]"
	}
	return out
}

func upperSnake(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Config controls which checks run and how strict they are.
type Config struct {
	// Enabled turns all checks on. When false, every check passes.
	Enabled bool

	// MaxToxicityScore is the highest acceptable toxicity score in [0,1].
	MaxToxicityScore float64

	// PIIDetection enables the PII regexes.
	PIIDetection bool

	// FallbackEnabled softens output rejection reasons and enables
	// fallback responses for infrastructure errors.
	FallbackEnabled bool
}

// DefaultConfig returns the production defaults: everything on, toxicity
// threshold 0.5.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxToxicityScore: DefaultMaxToxicityScore,
		PIIDetection:     true,
		FallbackEnabled:  true,
	}
}

// Gate applies safety checks according to its Config.
type Gate struct {
	cfg Config
}

// New creates a Gate with the given configuration.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// CheckInput screens user input before any model or tool work.
// Returns (false, reason) when the input must be rejected.
func (g *Gate) CheckInput(text string) (bool, string) {
	if !g.cfg.Enabled {
		return true, ""
	}

	if ToxicityScore(text) > g.cfg.MaxToxicityScore {
		return false, ReasonInputToxic
	}

	if g.cfg.PIIDetection && DetectPII(text) {
		return false, ReasonInputPII
	}

	return true, ""
}

// CheckOutput screens the final response before it is returned.
// Returns (false, reason) when the response must be filtered.
func (g *Gate) CheckOutput(text string) (bool, string) {
	if !g.cfg.Enabled {
		return true, ""
	}

	if ToxicityScore(text) > g.cfg.MaxToxicityScore {
		if g.cfg.FallbackEnabled {
			return false, ReasonOutputPolicy
		}
		return false, ReasonOutputToxic
	}

	if g.cfg.PIIDetection && DetectPII(text) {
		return false, ReasonOutputPII
	}

	return true, ""
}

// Sanitize replaces detected PII with typed redaction placeholders.
func (g *Gate) Sanitize(text string) string {
	sanitized := text
	for _, p := range piiPatterns {
		sanitized = p.re.ReplaceAllString(sanitized, redactions[p.name])
	}
	return sanitized
}

// Fallback maps an infrastructure error to a user-facing response.
// When fallback is disabled it returns ("", false) and the caller should
// propagate the error instead.
func (g *Gate) Fallback(err error) (string, bool) {
	if !g.cfg.FallbackEnabled {
		return "", false
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "I'm taking longer than expected. Please try again with a simpler query.", true
	case llm.IsRetryable(err):
		return "I'm experiencing high demand. Please try again in a moment.", true
	default:
		return "An error occurred. Please try again or rephrase your question.", true
	}
}

// ToxicityScore returns the fraction of toxicity patterns matching text,
// in [0,1].
func ToxicityScore(text string) float64 {
	if len(toxicityPatterns) == 0 {
		return 0
	}
	matches := 0
	for _, re := range toxicityPatterns {
		if re.MatchString(text) {
			matches++
		}
	}
	score := float64(matches) / float64(len(toxicityPatterns))
	if score > 1 {
		score = 1
	}
	return score
}

// DetectPII reports whether text contains any recognized PII.
func DetectPII(text string) bool {
	for _, p := range piiPatterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}
