package privilege

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassphrase produces a bcrypt hash suitable for storage in the mode's
// hash file. bcrypt's built-in per-hash salt and cost factor make it a
// better fit for a human-entered passphrase than a bare salted digest.
func hashPassphrase(passphrase string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing passphrase: %w", err)
	}
	return string(sum), nil
}

// verifyPassphrase compares a candidate passphrase against a stored bcrypt
// hash. bcrypt.CompareHashAndPassword runs in constant time with respect to
// the candidate's content.
func verifyPassphrase(stored, passphrase string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(passphrase)) == nil
}
