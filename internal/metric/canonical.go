package metric

import "golang.org/x/text/unicode/norm"

// CanonicalString returns the NFC normalization of s.
//
// All identity strings (entity ids, scope dimension values) pass through
// here before hashing or key construction, so that visually identical
// strings with different Unicode compositions produce identical keys.
func CanonicalString(s string) string {
	return norm.NFC.String(s)
}
