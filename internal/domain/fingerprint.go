package domain

import "strings"

// checksumLen is the length of a hex-encoded SHA-256 digest.
const checksumLen = 64

// Fingerprint holds the whole-file content checksums of a session's two
// input documents: the cardholder activity report and the receipt bundle.
type Fingerprint struct {
	CARChecksum     string
	ReceiptChecksum string
}

// NormalizeChecksum folds a checksum to the canonical lowercase form.
// Case is the only thing folded: padding or stray characters stay and
// fail validation. It does not validate; pair with ValidChecksum.
func NormalizeChecksum(s string) string {
	return strings.ToLower(s)
}

// ValidChecksum reports whether s is a well-formed file checksum:
// exactly 64 characters, all hexadecimal digits after case folding.
// It never panics, whatever the input.
func ValidChecksum(s string) bool {
	s = NormalizeChecksum(s)
	if len(s) != checksumLen {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Normalize returns the fingerprint with both checksums folded to lowercase.
func (f Fingerprint) Normalize() Fingerprint {
	return Fingerprint{
		CARChecksum:     NormalizeChecksum(f.CARChecksum),
		ReceiptChecksum: NormalizeChecksum(f.ReceiptChecksum),
	}
}

// Valid reports whether both checksums are well-formed.
func (f Fingerprint) Valid() bool {
	return ValidChecksum(f.CARChecksum) && ValidChecksum(f.ReceiptChecksum)
}
