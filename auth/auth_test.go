package auth

import (
	"strings"
	"support-flow/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "SupportFlow-Pass1!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// A wrong password does not match
	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompare_Rejects_Malformed_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
	req.ErrorIs(err, ErrInvalidHash)

	_, err = ComparePassword("whatever", "not-a-hash")
	req.ErrorIs(err, ErrInvalidHash)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenIssuer_Roundtrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, expiresAt, err := issuer.Issue("ADMIN_ID", "admin@test.com", domain.RoleAgent)
	req.NoError(err)
	req.True(expiresAt.After(time.Now()))

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("ADMIN_ID", claims.UserID)
	req.Equal("admin@test.com", claims.Handle)
	req.Equal(string(domain.RoleAgent), claims.Role)
}

func TestTokenIssuer_Rejects_Foreign_And_Expired_Tokens(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)

	// Given a token signed with another secret
	foreign, _, err := NewTokenIssuer("other-secret", time.Hour).Issue("cust-42", "c@test.com", domain.RoleCustomer)
	req.NoError(err)
	_, err = issuer.Validate(foreign)
	req.Error(err)

	// Given a token issued two hours ago
	expired := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("cust-42", "c@test.com", domain.RoleCustomer)
	req.NoError(err)
	_, err = issuer.Validate(old)
	req.Error(err)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
