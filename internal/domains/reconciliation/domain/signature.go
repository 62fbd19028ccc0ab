package domain

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

// Tolerance bounds how far a webhook timestamp may drift from the verifier's
// clock before the payload is treated as a replay.
const Tolerance = 5 * time.Minute

var (
	ErrMalformedHeader   = errors.New("signature header is malformed")
	ErrSignatureMismatch = errors.New("signature does not match payload")
	ErrStaleTimestamp    = errors.New("signature timestamp outside tolerance")
)

// SignatureHeader is the structured form of the gateway's signature header:
// a comma-separated list of key=value pairs with a decimal Unix timestamp
// under "t" and one or more hex HMAC candidates under "v1". Unknown scheme
// keys are ignored so the gateway can rotate schemes without breaking us.
type SignatureHeader struct {
	Timestamp  int64
	Candidates []string
}

// ParseSignatureHeader splits the raw header into its structured form.
// A missing timestamp or an empty candidate list is ErrMalformedHeader.
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	parsed := SignatureHeader{Timestamp: -1}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return SignatureHeader{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedHeader, value)
			}
			parsed.Timestamp = ts
		case "v1":
			if value != "" {
				parsed.Candidates = append(parsed.Candidates, value)
			}
		}
	}
	if parsed.Timestamp < 0 {
		return SignatureHeader{}, fmt.Errorf("%w: missing timestamp", ErrMalformedHeader)
	}
	if len(parsed.Candidates) == 0 {
		return SignatureHeader{}, fmt.Errorf("%w: no v1 signatures", ErrMalformedHeader)
	}
	return parsed, nil
}

// Verifier authenticates raw webhook payloads against the shared secret.
// It is a pure function of its inputs plus the injected clock, and it runs
// before any JSON decoding so unauthenticated bytes never reach the decoder.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier builds a verifier; a nil clock defaults to time.Now.
func NewVerifier(secret []byte, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: secret, now: now}
}

// Verify recomputes HMAC-SHA256(secret, "{timestamp}.{rawBody}") and accepts
// the payload when any v1 candidate matches under a constant-time compare.
// The replay window is enforced even for a matching signature.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) (time.Time, error) {
	header, err := ParseSignatureHeader(signatureHeader)
	if err != nil {
		return time.Time{}, err
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", header.Timestamp)
	mac.Write(rawBody)
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))

	matched := false
	for _, candidate := range header.Candidates {
		if hmac.Equal(expected, []byte(candidate)) {
			matched = true
		}
	}
	if !matched {
		return time.Time{}, ErrSignatureMismatch
	}

	signedAt := time.Unix(header.Timestamp, 0)
	if drift := v.now().Sub(signedAt); drift > Tolerance || drift < -Tolerance {
		return time.Time{}, ErrStaleTimestamp
	}
	return signedAt, nil
}
