package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestService(t *testing.T, secret string, now func() time.Time) *Service {
	t.Helper()
	svc, err := NewService(secret, time.Hour, WithClock(now))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestService_IssueAndVerify(t *testing.T) {
	now := time.Now()
	svc := newTestService(t, "test-secret", func() time.Time { return now })

	tok, err := svc.Issue(42, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("claims.UserID = %v, want 42", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("claims.Email = %v, want alice@example.com", claims.Email)
	}
	if got := claims.ExpiresAt.Unix(); got != now.Add(time.Hour).Unix() {
		t.Errorf("claims.ExpiresAt = %v, want %v", got, now.Add(time.Hour).Unix())
	}
}

func TestService_DefaultTTL(t *testing.T) {
	svc, err := NewService("secret", 0)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.TTL() != 7*24*time.Hour {
		t.Fatalf("TTL() = %v, want 7 days", svc.TTL())
	}
	if _, err := NewService("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestService_Expired(t *testing.T) {
	issuedAt := time.Now()
	current := issuedAt
	svc := newTestService(t, "test-secret", func() time.Time { return current })

	tok, err := svc.Issue(1, "bob@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	current = issuedAt.Add(59 * time.Minute)
	if _, err := svc.Verify(tok); err != nil {
		t.Fatalf("Verify() before expiry error = %v", err)
	}

	current = issuedAt.Add(2 * time.Hour)
	_, err = svc.Verify(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestService_WrongSecret(t *testing.T) {
	now := func() time.Time { return time.Now() }
	svc1 := newTestService(t, "secret-key-1", now)
	svc2 := newTestService(t, "secret-key-2", now)

	tok, err := svc1.Issue(7, "carol@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := svc2.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with rotated secret, got %v", err)
	}
}

func TestService_Tampered(t *testing.T) {
	svc := newTestService(t, "test-secret", time.Now)
	tok, err := svc.Issue(7, "carol@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format %q", tok)
	}
	forged := newTestService(t, "test-secret", time.Now)
	other, _ := forged.Issue(8, "mallory@example.com")
	otherParts := strings.Split(other, ".")

	// 用另一个 token 的 payload 拼接原签名
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered payload, got %v", err)
	}
}

func TestService_Malformed(t *testing.T) {
	svc := newTestService(t, "test-secret", time.Now)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "random string", token: "not.a.valid.token"},
		{name: "malformed jwt", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestService_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestService(t, "test-secret", time.Now)

	claims := jwtClaims{
		ID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := svc.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := svc.Verify(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestService_RequiresExpiry(t *testing.T) {
	svc := newTestService(t, "test-secret", time.Now)
	claims := jwtClaims{ID: 1, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for token without exp, got %v", err)
	}
}
