package session

import (
	"testing"
	"time"
)

func setTestSecret(t *testing.T) {
	t.Helper()
	t.Setenv("IDESK_AUTH_SECRET", "unit-test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndParseToken(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken("u1", []string{"Employee", "it", "employee", ""}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("token id must be set")
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "employee" || claims.Roles[1] != "it" {
		t.Errorf("roles must be normalized and deduplicated, got %v", claims.Roles)
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	setTestSecret(t)

	if _, err := GenerateToken("", nil, time.Hour); err == nil {
		t.Error("empty user id must be rejected")
	}
	if _, err := GenerateToken("u1", nil, 0); err == nil {
		t.Error("non-positive ttl must be rejected")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setTestSecret(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(raw); err != ErrInvalidToken {
			t.Errorf("ParseAndValidate(%q): got %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestParseRejectsExpired(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken("u1", nil, time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	setTestSecret(t)
	token, err := GenerateToken("u1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Setenv("IDESK_AUTH_SECRET", "a-different-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Errorf("foreign signature: got %v, want ErrInvalidToken", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("IDESK_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("u1", nil, time.Hour); err == nil {
		t.Error("missing secret must fail token generation")
	}
}
