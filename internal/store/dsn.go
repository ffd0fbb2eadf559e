package store

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect identifies a durable SQL engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Decision is the outcome of inspecting a durable-store connection string.
// A zero Dialect means the volatile backend must be used; Reason says why.
type Decision struct {
	Dialect Dialect
	// Postgres: the DSN passed to pgx unchanged. SQLite: the database file path.
	Target string
	Reason string
}

// Durable reports whether the decision names a durable engine.
func (d Decision) Durable() bool {
	return d.Dialect != ""
}

// internalHosts are service names that only resolve inside a development sandbox.
var internalHosts = []string{"localhost", "helium"}

var internalSuffixes = []string{".internal", ".local", ".localhost"}

// Classify decides, without any network access, whether raw names a usable durable store.
// Postgres accepts both URLs and libpq keyword/value strings.
// In production a postgres host that only resolves inside a sandbox is refused so a
// misconfigured deployment keeps serving from memory instead of failing to start.
// extraHosts extends the built-in internal host list.
func Classify(raw string, production bool, extraHosts []string) Decision {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Decision{Reason: "DATABASE_URL not set"}
	}

	if isKeywordValue(raw) {
		cfg, err := pgconn.ParseConfig(raw)
		if err != nil {
			return Decision{Reason: "malformed DATABASE_URL: invalid keyword/value connection string"}
		}
		hosts := []string{cfg.Host}
		for _, fb := range cfg.Fallbacks {
			hosts = append(hosts, fb.Host)
		}
		return postgresDecision(raw, hosts, production, extraHosts)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Decision{Reason: "malformed DATABASE_URL"}
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return postgresDecision(raw, []string{u.Hostname()}, production, extraHosts)
	case "sqlite", "file":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return Decision{Reason: "malformed DATABASE_URL: missing sqlite path"}
		}
		return Decision{Dialect: DialectSQLite, Target: path}
	case "":
		return Decision{Reason: "malformed DATABASE_URL: missing scheme"}
	default:
		return Decision{Reason: fmt.Sprintf("malformed DATABASE_URL: unsupported scheme %q", u.Scheme)}
	}
}

// keywordValuePattern matches the leading "key=" of a libpq "host=... dbname=..." string.
var keywordValuePattern = regexp.MustCompile(`^[A-Za-z_]+\s*=`)

func isKeywordValue(raw string) bool {
	return keywordValuePattern.MatchString(raw)
}

func postgresDecision(raw string, hosts []string, production bool, extraHosts []string) Decision {
	if production {
		for _, host := range hosts {
			if host == "" {
				host = "localhost"
			}
			if IsInternalHost(host, extraHosts) {
				return Decision{Reason: fmt.Sprintf("database host %q is internal; refusing durable storage in production", host)}
			}
		}
	}
	return Decision{Dialect: DialectPostgres, Target: raw}
}

// IsInternalHost reports whether host is loopback, unspecified, a unix socket
// directory, or a sandbox-only name.
func IsInternalHost(host string, extraHosts []string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || strings.HasPrefix(host, "/") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	for _, h := range internalHosts {
		if host == h {
			return true
		}
	}
	for _, suffix := range internalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	for _, h := range extraHosts {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}
