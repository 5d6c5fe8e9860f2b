// Package gateway adapts external card processors behind ports.Gateway.
// Two adapters exist: a Stripe-shaped HTTPS client for production and a
// deterministic mock for sandbox keys and tests. Both share the webhook
// signature scheme implemented here.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/payflow/payflow/internal/domain/errors"
)

// signatureTolerance bounds the age of a webhook timestamp. Older deliveries
// are rejected to stop replay of captured requests.
const signatureTolerance = 5 * time.Minute

// SignPayload produces the signature header for a webhook body:
// "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<body>'>".
func SignPayload(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(secret, ts, body))
}

// VerifySignature checks a webhook signature header against the raw body.
// Fails closed: malformed header, unknown scheme, stale timestamp and
// mismatched digest all return ErrInvalidSignature.
func VerifySignature(secret string, body []byte, header string, now time.Time) error {
	var ts string
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return fmt.Errorf("%w: malformed signature header", errors.ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", errors.ErrInvalidSignature)
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", errors.ErrInvalidSignature)
	}

	expected := computeSignature(secret, ts, body)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%w: digest mismatch", errors.ErrInvalidSignature)
}

func computeSignature(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
