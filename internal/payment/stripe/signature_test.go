package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeader(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestVerifier(secret string, now time.Time) *SignatureVerifier {
	v := NewSignatureVerifier(secret)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	v := newTestVerifier("whsec_test", now)

	err := v.Verify(payload, signedHeader("whsec_test", payload, now))
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	v := newTestVerifier("whsec_test", now)

	err := v.Verify(payload, signedHeader("whsec_other", payload, now))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier("whsec_test", now)
	header := signedHeader("whsec_test", []byte(`{"amount":10}`), now)

	err := v.Verify([]byte(`{"amount":1000}`), header)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	v := newTestVerifier("whsec_test", now)
	header := signedHeader("whsec_test", payload, now.Add(-6*time.Minute))

	err := v.Verify(payload, header)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyAcceptsSecondSignature(t *testing.T) {
	// key rotation: the header carries signatures for old and new secret
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	v := newTestVerifier("whsec_new", now)

	old := signedHeader("whsec_old", payload, now)
	fresh := signedHeader("whsec_new", payload, now)
	// append the valid v1 from the fresh header onto the stale one
	combined := old + fresh[len(fmt.Sprintf("t=%d", now.Unix())):]

	err := v.Verify(payload, combined)
	assert.NoError(t, err)
}

func TestVerifyRejectsMalformedHeaders(t *testing.T) {
	v := newTestVerifier("whsec_test", time.Unix(1_700_000_000, 0))

	for _, header := range []string{
		"",
		"t=notanumber,v1=abcdef",
		"v1=abcdef",
		fmt.Sprintf("t=%d", int64(1_700_000_000)),
	} {
		err := v.Verify([]byte(`{}`), header)
		require.ErrorIs(t, err, ErrBadSignature, "header %q", header)
	}
}
