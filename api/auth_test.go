package api

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

const testSecret = "unit-test-secret"

func testModeAuth(t *testing.T, audience, issuer string) *Auth {
	t.Helper()
	t.Setenv(envAuth0TestMode, "1")
	t.Setenv(envTestJWTSecret, testSecret)
	return NewAuth(nil, audience, issuer)
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthAcceptsSignedToken(t *testing.T) {
	auth := testModeAuth(t, "", "")
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	uid, err := auth.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "auth0|u1" {
		t.Fatalf("uid = %q, want auth0|u1", uid)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	auth := testModeAuth(t, "", "")
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestAuthRejectsTokenExpiringWithinSkewWindow(t *testing.T) {
	auth := testModeAuth(t, "", "")
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(30 * time.Second).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error for near-expiry token, got %v", err)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	auth := testModeAuth(t, "", "")
	token := signToken(t, jwt.SigningMethodHS256, "some-other-secret", jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestAuthRejectsUnexpectedSigningMethod(t *testing.T) {
	auth := testModeAuth(t, "", "")
	token := signToken(t, jwt.SigningMethodHS384, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := auth.UserIDFromAuthHeader("Bearer " + token); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestAuthRejectsMissingClaims(t *testing.T) {
	auth := testModeAuth(t, "", "")

	noSub := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + noSub); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error for missing sub, got %v", err)
	}

	noExp := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + noExp); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error for missing exp, got %v", err)
	}
}

func TestAuthVerifiesAudienceAndIssuer(t *testing.T) {
	auth := testModeAuth(t, "https://api.example.com", "https://tenant.auth0.com/")

	good := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://api.example.com",
		"iss": "https://tenant.auth0.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	badAud := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://other.example.com",
		"iss": "https://tenant.auth0.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badAud); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error for bad audience, got %v", err)
	}

	badIss := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"aud": "https://api.example.com",
		"iss": "https://evil.example.com/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badIss); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error for bad issuer, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"empty", "", "", false},
		{"wrong scheme", "Token a.b.c", "", false},
		{"scheme only", "Bearer ", "", false},
		{"not a jwt", "Bearer abc", "", false},
		{"too many dots", "Bearer a.b.c.d", "", false},
		{"plain", "Bearer a.b.c", "a.b.c", true},
		{"lowercase scheme", "bearer a.b.c", "a.b.c", true},
		{"surrounding space", "  Bearer a.b.c  ", "a.b.c", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := bearerToken(tc.header)
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if token != tc.want {
					t.Fatalf("token = %q, want %q", token, tc.want)
				}
				return
			}
			if !errors.Is(err, domain.ErrAuth) {
				t.Fatalf("expected auth error, got %v", err)
			}
		})
	}
}
