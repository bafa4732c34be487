package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyAccess_Valid(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := MintTestToken("user-42", 15*time.Minute)
	if err != nil {
		t.Fatalf("MintTestToken: %v", err)
	}
	userID, err := v.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("userID = %q, want user-42", userID)
	}
}

func TestVerifyAccess_Expired(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := MintTestToken("user-42", -time.Minute)
	if err != nil {
		t.Fatalf("MintTestToken: %v", err)
	}
	if _, err := v.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_WrongIssuer(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := MintTestTokenWithClaims("user-42", "other-issuer", testAudience, 15*time.Minute)
	if err != nil {
		t.Fatalf("MintTestTokenWithClaims: %v", err)
	}
	if _, err := v.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_WrongAudience(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := MintTestTokenWithClaims("user-42", testIssuer, "other-audience", 15*time.Minute)
	if err != nil {
		t.Fatalf("MintTestTokenWithClaims: %v", err)
	}
	if _, err := v.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_Malformed(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := v.VerifyAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("VerifyAccess(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestVerifyAccess_RejectsHMAC(t *testing.T) {
	// A token signed with HS256 must not be accepted even if the signature
	// would verify against the public key bytes.
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	claims := jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testPublicKeyPEM))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccess_MissingSubject(t *testing.T) {
	v, err := NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := MintTestToken("", 15*time.Minute)
	if err != nil {
		t.Fatalf("MintTestToken: %v", err)
	}
	if _, err := v.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
