// Package auth verifies that an inbound delivery is genuine: trusted source
// address, valid body signature, and a fresh timestamp.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// SignatureHeader is the request header carrying the body signature.
const SignatureHeader = "linear-signature"

// timestampTolerance is the maximum allowed skew between the delivery
// timestamp and local time. The boundary is inclusive.
const timestampTolerance = 60_000 * time.Millisecond

// DefaultAllowlist holds the four published webhook egress addresses.
// The allowlist is injected configuration; this is only the default.
var DefaultAllowlist = []string{
	"35.231.147.226",
	"35.243.134.228",
	"34.140.253.14",
	"34.38.87.206",
}

// Sentinel error kinds, one per failing check.
var (
	ErrSecretMissing  = errors.New("webhook secret is not configured")
	ErrIPNotAllowed   = errors.New("source ip not allowed")
	ErrBadSignature   = errors.New("signature mismatch")
	ErrStaleTimestamp = errors.New("timestamp outside tolerance")
)

// Option applies a configuration option to the Verifier.
type Option func(*Verifier)

// WithAllowlist replaces the source-IP allowlist.
func WithAllowlist(ips []string) Option {
	return func(v *Verifier) {
		if len(ips) > 0 {
			v.allowlist = buildAllowlist(ips)
		}
	}
}

// WithClock overrides the time source used for the timestamp check.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Verifier checks delivery authenticity. All checks are independent pure
// predicates; a delivery is accepted only when every one of them passes.
type Verifier struct {
	secret    []byte
	allowlist map[netip.Addr]struct{}
	now       func() time.Time
}

// NewVerifier builds a Verifier. An empty secret is a configuration fault
// and fails construction; it must never be surfaced as a per-request 401.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}

	v := &Verifier{
		secret:    []byte(secret),
		allowlist: buildAllowlist(DefaultAllowlist),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func buildAllowlist(ips []string) map[netip.Addr]struct{} {
	m := make(map[netip.Addr]struct{}, len(ips))
	for _, s := range ips {
		if addr, err := netip.ParseAddr(s); err == nil {
			m[addr] = struct{}{}
		}
	}
	return m
}

// Sign computes the lowercase hex HMAC-SHA256 digest of body under secret.
// It is deterministic: the same body and secret always produce the same
// digest, and any single-byte change to the body changes it.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIP checks membership of sourceIP in the allowlist. Unparseable
// addresses fail.
func (v *Verifier) VerifyIP(sourceIP string) error {
	addr, err := netip.ParseAddr(sourceIP)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrIPNotAllowed, sourceIP)
	}
	if _, ok := v.allowlist[addr]; !ok {
		return fmt.Errorf("%w: %q", ErrIPNotAllowed, sourceIP)
	}
	return nil
}

// VerifySignature recomputes the body digest and compares it with the header
// value in constant time. Any difference, including case or length, fails.
func (v *Verifier) VerifySignature(signature string, body []byte) error {
	expected := Sign(v.secret, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}

// VerifyTimestamp checks |now - ts| <= 60000ms. ts is milliseconds since
// epoch as carried in the webhookTimestamp body field. Exactly 60000ms apart
// passes; 60001ms fails.
func (v *Verifier) VerifyTimestamp(tsMillis int64) error {
	delta := v.now().Sub(time.UnixMilli(tsMillis))
	if delta < 0 {
		delta = -delta
	}
	if delta > timestampTolerance {
		return fmt.Errorf("%w: skew %s", ErrStaleTimestamp, delta)
	}
	return nil
}

// Verify runs all three checks, source IP first, then signature, then
// timestamp, and reports the first failure.
func (v *Verifier) Verify(sourceIP, signature string, body []byte, tsMillis int64) error {
	if err := v.VerifyIP(sourceIP); err != nil {
		return err
	}
	if err := v.VerifySignature(signature, body); err != nil {
		return err
	}
	return v.VerifyTimestamp(tsMillis)
}

// FailedCheck names the check a Verify error came from, for metrics.
// Unknown errors map to "unknown".
func FailedCheck(err error) string {
	switch {
	case errors.Is(err, ErrIPNotAllowed):
		return "ip"
	case errors.Is(err, ErrBadSignature):
		return "signature"
	case errors.Is(err, ErrStaleTimestamp):
		return "timestamp"
	default:
		return "unknown"
	}
}
