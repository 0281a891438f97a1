package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker returns a CheckOrigin function accepting the given origins.
// "*" accepts every origin. Requests without an Origin header come from
// non-browser clients and are accepted.
func OriginChecker(origins []string) func(r *http.Request) bool {
	allowed, allowAll := normalizeOrigins(origins)

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}

		header := r.Header.Get("Origin")
		if header == "" {
			return true
		}

		origin, ok := normalizeOrigin(header)
		if ok {
			if _, exists := allowed[origin]; exists {
				return true
			}
		}

		log.Printf("Blocked WebSocket connection from disallowed origin: %q", header)
		return false
	}
}

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}

		o, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		normalized[o] = struct{}{}
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
