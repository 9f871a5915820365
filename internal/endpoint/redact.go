package endpoint

import (
	"net/http"
	"regexp"
	"strings"
)

const redacted = "REDACTED"

var (
	// sensitive query parameters, e.g. ?token=abc
	queryRe = regexp.MustCompile(`(?i)([?&](?:token|access_token|auth|apikey|api_key|key|secret|password|passwd|signature|sig|jwt|session)=)[^&\s"']*`)

	// user:password@ in URLs
	userinfoRe = regexp.MustCompile(`(?i)(\b[a-z][a-z0-9+.-]*://[^/\s:@]*:)[^@\s/]*@`)

	// Authorization: Bearer abc, also as JSON or map formatting
	authHeaderRe = regexp.MustCompile(`(?i)((?:proxy-)?authorization["']?\s*[:=]\s*\[?["']?)[^"'\]\r\n,}]*`)
)

// Redact masks credential-bearing query parameters, URL passwords and
// authorization header values in s.
func Redact(s string) string {
	s = queryRe.ReplaceAllString(s, "${1}"+redacted)
	s = userinfoRe.ReplaceAllString(s, "${1}"+redacted+"@")
	s = authHeaderRe.ReplaceAllString(s, "${1}"+redacted)
	return s
}

// RedactHeader returns a copy of h safe to log.
func RedactHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		switch strings.ToLower(k) {
		case "authorization", "proxy-authorization", "cookie", "x-api-key":
			out[k] = []string{redacted}
		default:
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}
