package privilege

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenVersion = 1

// Token is the on-disk privilege activation token: version:created:expires
// with a SHA-512 HMAC over those three fields keyed by the mode's secret.
type Token struct {
	Version int
	Created time.Time
	Expires time.Time
	HMAC    string
}

func mintToken(key []byte, now time.Time, maxDuration time.Duration) Token {
	created := now
	expires := now.Add(maxDuration)
	return Token{
		Version: tokenVersion,
		Created: created,
		Expires: expires,
		HMAC:    computeHMAC(key, tokenVersion, created, expires),
	}
}

func computeHMAC(key []byte, version int, created, expires time.Time) string {
	h := hmac.New(sha512.New, key)
	fmt.Fprintf(h, "%d:%d:%d", version, created.Unix(), expires.Unix())
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether the token's HMAC matches the supplied key.
func (t Token) Verify(key []byte) bool {
	expected := computeHMAC(key, t.Version, t.Created, t.Expires)
	return hmac.Equal([]byte(expected), []byte(t.HMAC))
}

// Encode renders the token as version:created:expires:hmac.
func (t Token) Encode() string {
	return fmt.Sprintf("%d:%d:%d:%s", t.Version, t.Created.Unix(), t.Expires.Unix(), t.HMAC)
}

// DecodeToken parses the version:created:expires:hmac wire format.
func DecodeToken(s string) (Token, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 4)
	if len(parts) != 4 {
		return Token{}, fmt.Errorf("decoding token: expected 4 fields, got %d", len(parts))
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return Token{}, fmt.Errorf("decoding token version: %w", err)
	}
	createdUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("decoding token created timestamp: %w", err)
	}
	expiresUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("decoding token expires timestamp: %w", err)
	}

	return Token{
		Version: version,
		Created: time.Unix(createdUnix, 0).UTC(),
		Expires: time.Unix(expiresUnix, 0).UTC(),
		HMAC:    parts[3],
	}, nil
}
