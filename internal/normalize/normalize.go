package normalize

import (
	"net/mail"
	"strings"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ValidEmail reports whether e is a bare address such as "a@b.co".
func ValidEmail(e string) bool {
	e = Email(e)
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return false
	}
	_, domain, _ := strings.Cut(e, "@")
	return strings.Contains(domain, ".")
}

// DisplayName trims a display name and collapses inner runs of whitespace.
func DisplayName(n string) string {
	return strings.Join(strings.Fields(n), " ")
}
