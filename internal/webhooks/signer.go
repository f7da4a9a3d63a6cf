package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Headers attached to every outbound webhook request.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderID        = "X-Webhook-ID"
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// Signer produces the signature header for outbound webhook payloads.
//
// The signed message is "<unix_ts>.<payload>" and the header value is
// "t=<unix_ts>,v1=<hex hmac-sha256>". Binding the timestamp into the signature
// lets receivers reject replayed requests without any shared state.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer from a decrypted endpoint secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign computes the signature header value for payload at the given time.
// Identical inputs always produce identical output.
func (s *Signer) Sign(payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, s.signature(payload, ts))
}

func (s *Signer) signature(payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header against payload, rejecting signatures whose
// timestamp is further than tolerance from now. A tolerance of 0 skips the
// timestamp check.
func (s *Signer) Verify(header string, payload []byte, tolerance time.Duration) error {
	ts, provided, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	expected := s.signature(payload, ts)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func parseSignatureHeader(header string) (int64, string, error) {
	var ts int64
	var sig string

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return 0, "", fmt.Errorf("malformed signature header")
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed signature timestamp: %w", err)
			}
			ts = parsed
		case "v1":
			sig = value
		}
	}

	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("signature header missing t or v1")
	}
	return ts, sig, nil
}
