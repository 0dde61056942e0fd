package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Errors returned by Parse.
var (
	ErrMalformed = errors.New("signedurl: malformed token")
	ErrSignature = errors.New("signedurl: invalid signature")
	ErrExpired   = errors.New("signedurl: token expired")
)

// Signer issues and verifies expiring tokens that name a single resource.
// A token has the form <resource>.<unix expiry>.<hex hmac-sha256>.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New constructs a signer. A non-positive ttl falls back to 30 minutes.
func New(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token for resourceID and its expiry.
func (s *Signer) Sign(resourceID string) (string, time.Time, error) {
	if resourceID == "" || strings.Contains(resourceID, ".") {
		return "", time.Time{}, fmt.Errorf("signedurl: invalid resource id %q", resourceID)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signedurl: signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{resourceID, ts, s.mac(resourceID, ts)}, "."), expiresAt, nil
}

// Parse verifies token and returns the resource it names.
func (s *Signer) Parse(token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", time.Time{}, ErrMalformed
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, ErrMalformed
	}
	if !hmac.Equal([]byte(s.mac(parts[0], parts[1])), []byte(parts[2])) {
		return "", time.Time{}, ErrSignature
	}
	expiresAt := time.Unix(unix, 0).UTC()
	if s.now().After(expiresAt) {
		return "", time.Time{}, ErrExpired
	}
	return parts[0], expiresAt, nil
}

func (s *Signer) mac(resourceID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(resourceID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
