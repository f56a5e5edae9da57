package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndParse(t *testing.T) {
	tok, err := MintToken("alice", "Alice", "s3cret", time.Hour)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}

	claims, err := ParseClaims(tok, "s3cret")
	if err != nil {
		t.Fatalf("ParseClaims() error = %v", err)
	}
	if claims.Subject != "alice" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseClaims_Rejects(t *testing.T) {
	valid, _ := MintToken("alice", "", "s3cret", time.Hour)
	expired, _ := MintToken("alice", "", "s3cret", -time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "s3cret"},
		{"alg none", none, "s3cret"},
		{"no expiry", noExpiry, "s3cret"},
		{"garbage", "not-a-token", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseClaims(tt.token, tt.secret); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMintToken_RequiresSubject(t *testing.T) {
	if _, err := MintToken("", "", "s3cret", time.Hour); err == nil {
		t.Error("expected error for empty subject")
	}
}
