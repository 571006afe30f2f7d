package identity

import "strings"

// MaskEmail masks the local part of an email address for logs and audit
// records: "jane.doe@example.com" becomes "ja***@example.com". The domain
// is kept verbatim.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}

	local := email[:at]
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***" + email[at:]
}
