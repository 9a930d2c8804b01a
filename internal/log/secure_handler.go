package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,

	// Authentication
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"secret_key":    true,

	// Session
	"session":    true,
	"session_id": true,
	"sessionid":  true,
	"sid":        true,
	"jsessionid": true,

	// Credentials
	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// sensitiveKeywords mask any key containing them. The bare "key" is left
// out because it matches harmless names such as "redis_key".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitiveQueryParams are URL query parameters whose values are masked
// in addition to the sensitive keys.
var sensitiveQueryParams = map[string]bool{
	"key":       true,
	"sig":       true,
	"signature": true,
}

// sensitivePatterns mask a string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// urlSchemes are the schemes whose values are scanned for credentials.
var urlSchemes = []string{"http://", "https://", "redis://", "rediss://", "socks5://"}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// urlMask replaces credentials inside URLs. It contains only letters so
// that URL encoding leaves it readable.
const urlMask = "REDACTED"

// SecureHandler wraps an slog.Handler and masks sensitive attribute values
// before passing records on. Besides secret-looking keys and values, it
// strips credentials from URLs: crawl roots and Redis addresses may carry
// userinfo or token query parameters.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, the returned SecureHandler will use slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes sanitized and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if clean, changed := sanitizeURL(s); changed {
			return slog.String(a.Key, clean)
		}
	}
	return a
}

// isSensitiveKey reports whether an attribute key names a secret.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return sensitiveKeys[key] || containsSensitiveKeyword(key)
}

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// sanitizeURL masks userinfo and sensitive query values of a URL string.
// changed is false when s is not a URL or carries no credentials.
func sanitizeURL(s string) (clean string, changed bool) {
	lower := strings.ToLower(s)
	isURL := false
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(lower, scheme) {
			isURL = true
			break
		}
	}
	if !isURL {
		return s, false
	}

	u, err := url.Parse(s)
	if err != nil {
		return s, false
	}
	if u.User != nil {
		u.User = url.User(urlMask)
		changed = true
	}
	if u.RawQuery != "" {
		if q, masked := maskQuery(u.RawQuery); masked {
			u.RawQuery = q
			changed = true
		}
	}
	if !changed {
		return s, false
	}
	return u.String(), true
}

// maskQuery replaces the values of sensitive parameters in a raw query,
// leaving the rest of it byte for byte.
func maskQuery(raw string) (string, bool) {
	parts := strings.Split(raw, "&")
	masked := false
	for i, part := range parts {
		name, _, hasValue := strings.Cut(part, "=")
		if !hasValue {
			continue
		}
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if isSensitiveKey(name) || sensitiveQueryParams[strings.ToLower(name)] {
			parts[i] = name + "=" + urlMask
			masked = true
		}
	}
	return strings.Join(parts, "&"), masked
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger creates a text logger that sanitizes its output.
// verbose selects Debug level; otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(h))
}

// NewSecureJSONLogger creates a JSON logger that sanitizes its output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(h))
}
