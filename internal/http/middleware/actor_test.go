package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

func TestActorMissingSecret(t *testing.T) {
	rec := serveActor(t, Actor(""), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorMissingHeader(t *testing.T) {
	rec := serveActor(t, Actor("secret"), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorInvalidSignature(t *testing.T) {
	token := signedActorToken(t, "wrong", uuid.NewString(), "subject")
	rec := serveActor(t, Actor("secret"), token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorRejectsBadClaims(t *testing.T) {
	cases := map[string]struct{ sub, role string }{
		"non uuid subject": {sub: "patient-7", role: "subject"},
		"nil subject":      {sub: uuid.Nil.String(), role: "subject"},
		"unknown role":     {sub: uuid.NewString(), role: "admin"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serveActor(t, Actor("secret"), signedActorToken(t, "secret", tc.sub, tc.role))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestActorValidToken(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+signedActorToken(t, "secret", id.String(), "Provider"))
	rec := httptest.NewRecorder()

	var got scheduling.Actor
	Actor("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected actor in context")
		}
		got = actor
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got.ID != id || got.Role != scheduling.RoleProvider {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func serveActor(t *testing.T, mw func(http.Handler) http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec
}

func signedActorToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := ActorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
