package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header carrying the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is how far a signed timestamp may drift from now before
// the delivery is rejected as a replay.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrInvalidSignatureHeader is returned when the header cannot be parsed.
	ErrInvalidSignatureHeader = errors.New("invalid signature header")
	// ErrSignatureMismatch is returned when no candidate signature matches.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrToleranceExceeded is returned when the signed timestamp is outside
	// the replay tolerance window.
	ErrToleranceExceeded = errors.New("timestamp outside tolerance window")
)

// signedHeader is the parsed form of "t=<unix>,v1=<hex>[,v1=<hex>...]".
type signedHeader struct {
	timestamp  int64
	signatures []string
}

func parseSignatureHeader(header string) (*signedHeader, error) {
	parsed := &signedHeader{}

	for _, pair := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, ErrInvalidSignatureHeader
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrInvalidSignatureHeader
			}
			parsed.timestamp = ts
		case "v1":
			parsed.signatures = append(parsed.signatures, value)
		default:
			// Unknown schemes are ignored for forward compatibility.
		}
	}

	if parsed.timestamp == 0 || len(parsed.signatures) == 0 {
		return nil, ErrInvalidSignatureHeader
	}

	return parsed, nil
}

// computeSignature creates the HMAC-SHA256 signature for a webhook payload.
// The canonical string format is: "{timestamp}.{payload}"
func computeSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook delivery's signature and replay window.
func VerifySignature(secret, header string, payload []byte, tolerance time.Duration, now time.Time) error {
	parsed, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if drift := now.Unix() - parsed.timestamp; drift > int64(tolerance.Seconds()) || -drift > int64(tolerance.Seconds()) {
		return ErrToleranceExceeded
	}

	expected := computeSignature(secret, parsed.timestamp, payload)
	for _, sig := range parsed.signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}

	return ErrSignatureMismatch
}

// ConstructEvent verifies a webhook delivery and decodes its envelope.
// The payload must be the raw request body, untouched by any JSON
// re-encoding, or the signature check will fail.
func ConstructEvent(payload []byte, header, secret string) (*Event, error) {
	if err := VerifySignature(secret, header, payload, DefaultTolerance, time.Now()); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	return &event, nil
}

// SignPayload produces a signature header for a payload. Test helper for
// exercising the webhook endpoint without the real provider.
func SignPayload(secret string, timestamp time.Time, payload []byte) string {
	ts := timestamp.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(secret, ts, payload))
}
