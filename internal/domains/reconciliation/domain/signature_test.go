package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("whsec_test_secret")

func signBody(t *testing.T, secret []byte, timestamp int64, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseSignatureHeader_Valid(t *testing.T) {
	header, err := ParseSignatureHeader("t=1700000000,v1=abcdef")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), header.Timestamp)
	require.Equal(t, []string{"abcdef"}, header.Candidates)
}

func TestParseSignatureHeader_MultipleCandidates(t *testing.T) {
	header, err := ParseSignatureHeader("t=1700000000,v1=old,v1=new")
	require.NoError(t, err)
	require.Equal(t, []string{"old", "new"}, header.Candidates)
}

func TestParseSignatureHeader_IgnoresUnknownSchemes(t *testing.T) {
	header, err := ParseSignatureHeader("t=1700000000,v0=legacy,v1=abcdef")
	require.NoError(t, err)
	require.Equal(t, []string{"abcdef"}, header.Candidates)
}

func TestParseSignatureHeader_MissingTimestamp(t *testing.T) {
	_, err := ParseSignatureHeader("v1=abcdef")
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseSignatureHeader_MissingSignature(t *testing.T) {
	_, err := ParseSignatureHeader("t=1700000000")
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseSignatureHeader_BadTimestamp(t *testing.T) {
	_, err := ParseSignatureHeader("t=not-a-number,v1=abcdef")
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseSignatureHeader_Empty(t *testing.T) {
	_, err := ParseSignatureHeader("")
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestVerify_Accepts(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt.Add(30 * time.Second) })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	got, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.NoError(t, err)
	require.Equal(t, signedAt, got)
}

func TestVerify_AcceptsAnyMatchingCandidate(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", signedAt.Unix(), "deadbeef", sig)
	_, err := verifier.Verify(body, header)
	require.NoError(t, err)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt })

	sig := signBody(t, []byte("another-secret"), signedAt.Unix(), body)
	_, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	_, err := verifier.Verify([]byte(`{"id":"evt_2"}`), fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_RejectsTamperedTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	_, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix()+1, sig))
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt.Add(Tolerance + time.Second) })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	_, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerify_RejectsFutureTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt.Add(-Tolerance - time.Second) })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	_, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerify_EdgeOfTolerance(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1700000000, 0)
	verifier := NewVerifier(testSecret, func() time.Time { return signedAt.Add(Tolerance) })

	sig := signBody(t, testSecret, signedAt.Unix(), body)
	_, err := verifier.Verify(body, fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), sig))
	require.NoError(t, err)
}
