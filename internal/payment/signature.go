package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the x-signature header of a Mercado Pago
// notification. The HMAC-SHA256 is computed over
// "id:<data_id>;request-id:<x-request-id>;ts:<ts>;" keyed by the webhook
// secret.
//
// Verification is skipped only when no secret is configured or the
// notification carries no signature headers. A header that is present but
// malformed is rejected.
func VerifySignature(secret, dataID, xSignature, xRequestID string) error {
	if secret == "" || xSignature == "" || xRequestID == "" {
		return nil
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	got, err := hex.DecodeString(v1)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Manifest(dataID, xRequestID, ts)))
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrInvalidSignature
	}
	return nil
}

// Manifest builds the signed template. Alphanumeric ids are lowercased as
// Mercado Pago does when signing.
func Manifest(dataID, requestID, ts string) string {
	return "id:" + strings.ToLower(dataID) + ";request-id:" + requestID + ";ts:" + ts + ";"
}
