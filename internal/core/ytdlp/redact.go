package ytdlp

import "regexp"

// redactionMarker replaces credential-bearing query parameter values before
// any URL or diagnostic text reaches the log.
const redactionMarker = "REDACTED"

var credParam = regexp.MustCompile(`(?i)([?&](?:token|sig|signature|auth|key|api_key)=)[^&\s"']+`)

// Redact masks token/sig/signature/auth/key/api_key query values in s.
func Redact(s string) string {
	return credParam.ReplaceAllString(s, "${1}"+redactionMarker)
}
