package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T) *HMACTokens {
	t.Helper()
	tokens, err := NewHMACTokens(Config{Secret: testSecret, Issuer: "learnhub", Audience: "learnhub-api", TokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

func TestHMACTokens_IssueValidate(t *testing.T) {
	tokens := newTestTokens(t)
	token, err := tokens.Issue("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "user-1" || claims.Issuer != "learnhub" || !claims.HasRole(RoleAdmin) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt) != time.Minute {
		t.Fatalf("unexpected lifetime: %s", claims.ExpiresAt.Sub(claims.IssuedAt))
	}
}

func TestHMACTokens_Rejects(t *testing.T) {
	tokens := newTestTokens(t)
	ctx := context.Background()

	if _, err := tokens.Validate(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}

	other, _ := NewHMACTokens(Config{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "learnhub", Audience: "learnhub-api"})
	forged, _ := other.Issue("user-1")
	if _, err := tokens.Validate(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, _ := tokens.Issue("user-1")
	tokens.now = time.Now
	if _, err := tokens.Validate(ctx, expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tokens.Validate(ctx, none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}

	wrongAudience, _ := NewHMACTokens(Config{Secret: testSecret, Issuer: "learnhub", Audience: "other"})
	token, _ := wrongAudience.Issue("user-1")
	if _, err := tokens.Validate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong audience, got %v", err)
	}
}

func TestNewHMACTokens_ShortSecret(t *testing.T) {
	if _, err := NewHMACTokens(Config{Secret: "short"}); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestBearerToken(t *testing.T) {
	if token, ok := BearerToken("Bearer abc"); !ok || token != "abc" {
		t.Fatalf("unexpected %q %v", token, ok)
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatal("expected basic scheme rejected")
	}
	if _, ok := BearerToken("Bearer "); ok {
		t.Fatal("expected empty token rejected")
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := WithClaims(context.Background(), &Claims{Subject: "u"})
	if GetClaims(ctx).Subject != "u" {
		t.Fatal("expected claims round trip")
	}
	if GetClaims(context.Background()) != nil {
		t.Fatal("expected nil claims")
	}
}
