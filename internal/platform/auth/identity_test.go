package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v4"

	"github.com/harvestlink/api/internal/domain"
)

func signedToken(t *testing.T, subject, role string) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Role:             role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseBearerExtractsActor(t *testing.T) {
	header := "Bearer " + signedToken(t, "usr_1", "seller")

	actor, err := ParseBearer(header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.ID != "usr_1" || actor.Role != domain.RoleSeller {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseBearerRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no bearer prefix", signedToken(t, "usr_1", "buyer")},
		{"garbage token", "Bearer not.a.jwt"},
		{"missing subject", "Bearer " + signedToken(t, "", "buyer")},
		{"unknown role", "Bearer " + signedToken(t, "usr_1", "superuser")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseBearer(tc.header); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), domain.Actor{ID: "usr_2", Role: domain.RoleAdmin})

	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID != "usr_2" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v ok=%v", actor, ok)
	}

	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor on empty context")
	}
}
