package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignData computes an HMAC-SHA256 signature over data, base64 URL-encoded
func SignData(data string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignedData checks a signature produced by SignData in constant time
func ValidateSignedData(data, signature string, key []byte) bool {
	expected, err := base64.URLEncoding.DecodeString(SignData(data, key))
	if err != nil {
		return false
	}
	provided, err := base64.URLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
