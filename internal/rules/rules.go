// Package rules detects well-known deployment failure signatures in logs.
// A matched signature contributes a short hint to the prompt; it never
// replaces the model's answer.
package rules

import (
	"regexp"
	"strings"
)

// Rule represents a single failure signature.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string

	// Name is a human-readable name for the rule.
	Name string

	// Patterns are regex patterns to match against log content.
	Patterns []*regexp.Regexp

	// Keywords are simple string matches (case-insensitive). All keywords
	// of one group must appear for the group to match.
	Keywords [][]string

	// Hint is the note handed to the model when the rule matches.
	Hint string
}

// Match checks if the log content matches this rule.
func (r *Rule) Match(log string) bool {
	logLower := strings.ToLower(log)

	// Check keyword groups first (faster)
	for _, group := range r.Keywords {
		if containsAll(logLower, group) {
			return true
		}
	}

	for _, pattern := range r.Patterns {
		if pattern.MatchString(log) {
			return true
		}
	}

	return false
}

func containsAll(s string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(s, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

// DefaultRules returns the built-in set of signatures for n8n and container deployments.
func DefaultRules() []*Rule {
	return []*Rule{
		missingDockerfile(),
		portBinding(),
		n8nEncryptionKey(),
		databaseConnection(),
		outOfMemory(),
		permissionDenied(),
		imagePull(),
		npmInstallFailure(),
		diskSpaceFull(),
		tlsCertificate(),
	}
}

func missingDockerfile() *Rule {
	return &Rule{
		ID:   "missing_dockerfile",
		Name: "Dockerfile Not Found",
		Keywords: [][]string{
			{"failed to read dockerfile"},
			{"open dockerfile", "no such file or directory"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)unable to prepare context: unable to evaluate symlinks in Dockerfile path`),
			regexp.MustCompile(`(?i)Dockerfile.*(cannot be found|not found)`),
		},
		Hint: "The build could not find a Dockerfile at the configured path or build context root. The answer should include a Dockerfile for the service.",
	}
}

func portBinding() *Rule {
	return &Rule{
		ID:   "port_binding",
		Name: "Port Binding",
		Keywords: [][]string{
			{"no open ports detected"},
			{"address already in use"},
			{"port scan timeout"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)EADDRINUSE`),
			regexp.MustCompile(`(?i)bind: address already in use`),
		},
		Hint: "The platform could not reach the service port. n8n listens on N8N_PORT (default 5678); the platform may inject PORT instead.",
	}
}

func n8nEncryptionKey() *Rule {
	return &Rule{
		ID:   "n8n_encryption_key",
		Name: "n8n Encryption Key Mismatch",
		Keywords: [][]string{
			{"mismatching encryption keys"},
			{"encryption key", "n8n"},
		},
		Hint: "n8n found credentials encrypted with a different N8N_ENCRYPTION_KEY than the one configured. The key must be stable across restarts and match the settings file in the data volume.",
	}
}

func databaseConnection() *Rule {
	return &Rule{
		ID:   "database_connection",
		Name: "Database Connection",
		Keywords: [][]string{
			{"econnrefused", "5432"},
			{"connection refused", "postgres"},
			{"database", "does not exist"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password authentication failed for user`),
			regexp.MustCompile(`(?i)getaddrinfo ENOTFOUND`),
		},
		Hint: "The service could not connect to its database. Check DB_TYPE and the DB_POSTGRESDB_* variables, and that the database accepts connections from the service network.",
	}
}

func outOfMemory() *Rule {
	return &Rule{
		ID:   "out_of_memory",
		Name: "Out of Memory",
		Keywords: [][]string{
			{"out of memory"},
			{"javascript heap out of memory"},
			{"oomkilled"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)exit(ed)? (with )?(code|status) 137`),
			regexp.MustCompile(`(?i)memory limit exceeded`),
		},
		Hint: "The process was killed for exceeding its memory limit. Small free-tier instances often need NODE_OPTIONS=--max-old-space-size tuned or a larger plan.",
	}
}

func permissionDenied() *Rule {
	return &Rule{
		ID:   "permission_denied",
		Name: "Permission Denied",
		Keywords: [][]string{
			{"eacces", "permission denied"},
			{"permission denied", "/home/node/.n8n"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)mkdir .*: permission denied`),
			regexp.MustCompile(`(?i)operation not permitted`),
		},
		Hint: "The container user cannot write to a path it needs. The official n8n image runs as user node (uid 1000) and writes to /home/node/.n8n.",
	}
}

func imagePull() *Rule {
	return &Rule{
		ID:   "image_pull",
		Name: "Image Pull Failure",
		Keywords: [][]string{
			{"manifest unknown"},
			{"pull access denied"},
			{"errimagepull"},
			{"imagepullbackoff"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)failed to (pull|resolve).*image`),
		},
		Hint: "The base image could not be pulled. Check the image name and tag (for example n8nio/n8n:latest) and registry credentials.",
	}
}

func npmInstallFailure() *Rule {
	return &Rule{
		ID:   "npm_install_failure",
		Name: "npm Install Failure",
		Keywords: [][]string{
			{"npm err!"},
			{"npm error"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ERESOLVE unable to resolve dependency tree`),
			regexp.MustCompile(`(?i)gyp ERR!`),
		},
		Hint: "Dependency installation failed during the build. Lockfile drift, Node version mismatch, or missing native build tools are common causes.",
	}
}

func diskSpaceFull() *Rule {
	return &Rule{
		ID:   "disk_space_full",
		Name: "Disk Space Full",
		Keywords: [][]string{
			{"no space left on device"},
			{"disk quota exceeded"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ENOSPC`),
		},
		Hint: "The build or runtime ran out of disk space. Build caches, large node_modules, or execution data in the n8n database may need pruning.",
	}
}

func tlsCertificate() *Rule {
	return &Rule{
		ID:   "tls_certificate",
		Name: "TLS Certificate",
		Keywords: [][]string{
			{"certificate has expired"},
			{"self signed certificate"},
			{"unable to verify the first certificate"},
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)x509: certificate`),
		},
		Hint: "A TLS handshake failed. Check WEBHOOK_URL uses the platform's public https URL and that outbound calls trust the target certificate.",
	}
}
