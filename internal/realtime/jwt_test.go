// Copyright 2025 James Ross
package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(body)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return header + "." + payload + "." + sig
}

func TestVerifyTokenAcceptsValidSignature(t *testing.T) {
	token := signToken(t, Claims{Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour).Unix()}, "secret")
	claims, err := VerifyToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	token := signToken(t, Claims{Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour).Unix()}, "secret")
	_, err := VerifyToken(token, "wrong-secret")
	require.Error(t, err)
}

func TestVerifyTokenRejectsExpiredToken(t *testing.T) {
	token := signToken(t, Claims{Subject: "user-1", ExpiresAt: time.Now().Add(-time.Hour).Unix()}, "secret")
	_, err := VerifyToken(token, "secret")
	require.Error(t, err)
}
