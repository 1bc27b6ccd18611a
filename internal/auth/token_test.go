package auth

import (
	"testing"
	"time"
)

func setSecret(t *testing.T) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "unit-test-secret")
	t.Cleanup(ResetSecretForTests)
}

func TestTokenRoundTrip(t *testing.T) {
	setSecret(t)

	actor := Actor{ID: "user-1", Name: "Dana Ops", Email: "Dana@Example.com"}
	token, err := GenerateToken(actor, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	got, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate failed: %v", err)
	}
	if got.ID != "user-1" {
		t.Fatalf("unexpected subject: %s", got.ID)
	}
	if got.Name != "Dana Ops" {
		t.Fatalf("unexpected name: %s", got.Name)
	}
	if got.Email != "dana@example.com" {
		t.Fatalf("email not normalised: %s", got.Email)
	}
}

func TestGenerateTokenRequiresActorID(t *testing.T) {
	setSecret(t)
	if _, err := GenerateToken(Actor{Name: "nobody"}, time.Minute); err == nil {
		t.Fatal("expected error for empty actor id")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setSecret(t)
	if _, err := ParseAndValidate("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	setSecret(t)
	token, err := GenerateToken(Actor{ID: "user-2"}, time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "")
	t.Cleanup(ResetSecretForTests)
	if _, err := GenerateToken(Actor{ID: "user-3"}, time.Minute); err == nil {
		t.Fatal("expected error when secret is not configured")
	}
}

func TestVerifyIssuerKey(t *testing.T) {
	setSecret(t)
	t.Setenv(issuerKeyEnvVariable, "mint-key")

	if !VerifyIssuerKey("mint-key") {
		t.Fatal("expected matching key to verify")
	}
	if !VerifyIssuerKey("  mint-key  ") {
		t.Fatal("expected surrounding whitespace to be ignored")
	}
	if VerifyIssuerKey("other-key") {
		t.Fatal("wrong key must not verify")
	}
	if VerifyIssuerKey("") {
		t.Fatal("empty key must not verify")
	}
}

func TestVerifyIssuerKeyDisabledWhenUnconfigured(t *testing.T) {
	setSecret(t)
	t.Setenv(issuerKeyEnvVariable, "")

	if VerifyIssuerKey("") {
		t.Fatal("minting must be disabled without a configured key")
	}
	if VerifyIssuerKey("anything") {
		t.Fatal("no presented key verifies when none is configured")
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := ContextWithActor(t.Context(), Actor{ID: "user-9", Name: "Ines"})
	got, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got.ID != "user-9" || got.Name != "Ines" {
		t.Fatalf("unexpected actor: %+v", got)
	}

	if _, ok := ActorFromContext(t.Context()); ok {
		t.Fatal("expected no actor on fresh context")
	}
}
