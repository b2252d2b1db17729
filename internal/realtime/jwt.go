// Copyright 2025 James Ross
package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Claims is the subset of a bearer token's payload the gateway trusts,
// grounded on the teacher's admin-api JWT claims shape.
type Claims struct {
	Subject   string   `json:"sub"`
	Roles     []string `json:"roles"`
	ExpiresAt int64    `json:"exp"`
	IssuedAt  int64    `json:"iat"`
}

var (
	errMalformedToken = errors.New("realtime: malformed token")
	errExpiredToken   = errors.New("realtime: token expired")
	errBadSignature   = errors.New("realtime: invalid signature")
)

// VerifyToken validates a compact JWT (header.payload.signature, HMAC-SHA256)
// against secret, grounded on the teacher's admin-api/middleware.go
// validateJWT — no external JWT library needed for this single algorithm.
func VerifyToken(token string, secret string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, errExpiredToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sig, h.Sum(nil)) {
		return nil, errBadSignature
	}

	return &claims, nil
}
