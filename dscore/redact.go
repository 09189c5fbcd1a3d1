package dscore

import "regexp"

var (
	secretOption = regexp.MustCompile(`(?i)\b(password|passwd|pass|pwd|p|secret|token)=([^&;\s"']*)`)
	secretUser   = regexp.MustCompile(`://([^:/@\s]*):([^@/\s]*)@`)
)

// Redact masks credential values in connection strings, identities and
// messages that quote them.
func Redact(s string) string {
	s = secretOption.ReplaceAllString(s, "$1=xxxxx")
	return secretUser.ReplaceAllString(s, "://$1:xxxxx@")
}

// Redacted is ConnectID with credentials masked, for logging.
func (c *Config) Redacted() string { return Redact(c.ConnectID()) }
