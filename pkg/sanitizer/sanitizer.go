// Package sanitizer prepares pasted logs before they leave the process:
// it trims, bounds the size and masks credentials.
package sanitizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Pattern is a named secret detector.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Sanitizer handles log preprocessing and secret masking.
type Sanitizer struct {
	patterns []Pattern
	maxSize  int
}

// Result describes one sanitization pass.
type Result struct {
	// Text is the cleaned log.
	Text string

	// OriginalSize is the byte length of the input.
	OriginalSize int

	// Truncated reports whether Text was cut to the size limit.
	Truncated bool

	// Redactions counts masked values per pattern name.
	Redactions map[string]int
}

// TotalRedactions sums all masked values.
func (r Result) TotalRedactions() int {
	total := 0
	for _, n := range r.Redactions {
		total += n
	}
	return total
}

func p(name, expr string) Pattern {
	return Pattern{Name: name, Re: regexp.MustCompile(expr)}
}

// DefaultPatterns covers credentials commonly pasted from deployment dashboards.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Provider keys
		p("google_api_key", `AIza[0-9A-Za-z_\-]{35}`),
		p("openai_api_key", `sk-(?:proj-)?[A-Za-z0-9_\-]{20,}`),
		p("github_token", `gh[pousr]_[A-Za-z0-9]{36}`),
		p("slack_token", `xox[baprs]-[0-9A-Za-z-]+`),
		p("aws_access_key", `AKIA[0-9A-Z]{16}`),

		// n8n settings
		p("n8n_api_key", `(?i)(x-n8n-api-key\s*[:=]\s*)['"]?[^\s'"]+['"]?`),
		p("n8n_encryption_key", `(?i)(n8n_encryption_key\s*[:=]\s*)['"]?[^\s'"]+['"]?`),

		// Tokens and headers
		p("jwt", `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`),
		p("bearer_token", `(?i)(bearer\s+)[A-Za-z0-9_\-\.=]+`),
		p("basic_auth", `(?i)(basic\s+)[A-Za-z0-9+/=]{8,}`),

		// Assignments
		p("api_key", `(?i)((?:api|secret|access)[_-]?key\s*[:=]\s*)['"]?[A-Za-z0-9_\-]{16,}['"]?`),
		p("token", `(?i)((?:auth[_-]?)?token\s*[:=]\s*)['"]?[A-Za-z0-9_\-\.]{16,}['"]?`),
		p("password", `(?i)((?:password|passwd|pwd)\s*[:=]\s*)['"]?[^\s'"]{4,}['"]?`),

		// Database URLs with inline credentials
		p("database_url", `(?i)((?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis)://)[^@\s/]+@`),

		// Private keys
		p("private_key", `-----BEGIN\s+(?:RSA\s+|DSA\s+|EC\s+|OPENSSH\s+|PGP\s+)?PRIVATE\s+KEY(?:\s+BLOCK)?-----`),

		// PII
		p("email", `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	}
}

// New creates a new Sanitizer with default patterns.
func New(maxSize int) *Sanitizer {
	return &Sanitizer{
		patterns: DefaultPatterns(),
		maxSize:  maxSize,
	}
}

// NewWithPatterns creates a Sanitizer with custom patterns.
func NewWithPatterns(maxSize int, patterns []Pattern) *Sanitizer {
	return &Sanitizer{
		patterns: patterns,
		maxSize:  maxSize,
	}
}

// IsEmpty checks if the log is empty or whitespace only.
func (s *Sanitizer) IsEmpty(log string) bool {
	return strings.TrimSpace(log) == ""
}

// IsTooLarge checks if the log exceeds the maximum size.
func (s *Sanitizer) IsTooLarge(log string) bool {
	return len(strings.TrimSpace(log)) > s.maxSize
}

// Sanitize trims the log, masks secrets and enforces the size limit.
// Masking runs before truncation so a secret straddling the cut is never half-exposed.
// An oversized log keeps its first lines and, mostly, its last ones, where
// build and runtime failures are reported.
func (s *Sanitizer) Sanitize(log string) Result {
	res := Result{
		OriginalSize: len(log),
		Redactions:   make(map[string]int),
	}

	text := strings.TrimSpace(log)
	for _, pat := range s.patterns {
		text = pat.Re.ReplaceAllStringFunc(text, func(match string) string {
			res.Redactions[pat.Name]++
			return mask(pat.Re, match)
		})
	}

	if s.maxSize > 0 && len(text) > s.maxSize {
		text = truncateMiddle(text, s.maxSize)
		res.Truncated = true
	}

	res.Text = text
	return res
}

// mask keeps the first capture group (the "key=" part) and redacts the rest.
func mask(re *regexp.Regexp, match string) string {
	sub := re.FindStringSubmatch(match)
	if len(sub) > 1 && sub[1] != "" && strings.HasPrefix(match, sub[1]) {
		return sub[1] + "[REDACTED]"
	}
	return "[REDACTED]"
}

func omittedMarker(n int) string {
	return fmt.Sprintf("\n... [%d bytes omitted] ...\n", n)
}

// truncateMiddle cuts s to at most max bytes by dropping the middle. A quarter
// of the budget goes to the head, the rest to the tail. Cuts never split a
// UTF-8 sequence.
func truncateMiddle(s string, max int) string {
	if len(s) <= max {
		return s
	}

	// The marker for len(s) is at least as long as any real marker.
	budget := max - len(omittedMarker(len(s)))
	if budget <= 0 {
		return s[runeCeil(s, len(s)-max):]
	}

	head := s[:runeFloor(s, budget/4)]
	tailStart := runeCeil(s, len(s)-(budget-budget/4))
	return head + omittedMarker(tailStart-len(head)) + s[tailStart:]
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
