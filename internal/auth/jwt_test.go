package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/annel0/backinv/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	ti, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)

	token, err := ti.GenerateJWT(&Operator{Name: "admin", Level: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "JWT состоит из трёх частей")

	claims, err := ti.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Operator)
	assert.Equal(t, 4, claims.Level)
}

func TestValidateInvalidJWT(t *testing.T) {
	ti, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)

	for _, invalid := range []string{
		"invalid.token.here",
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		_, err := ti.ValidateJWT(invalid)
		assert.ErrorIs(t, err, ErrInvalidToken, "токен %q", invalid)
	}

	other, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	token, err := other.GenerateJWT(&Operator{Name: "admin", Level: 4})
	require.NoError(t, err)
	_, err = ti.ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "токен с чужой подписью отвергается")
}

func TestValidateExpiredJWT(t *testing.T) {
	ti, err := NewTokenIssuer("", time.Minute)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Hour)
	ti.now = func() time.Time { return issued }
	token, err := ti.GenerateJWT(&Operator{Name: "admin", Level: 4})
	require.NoError(t, err)

	ti.now = time.Now
	_, err = ti.ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_Secret(t *testing.T) {
	secret, err := GenerateSecureSecret()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(secret), 40)

	_, err = NewTokenIssuer(secret, 0)
	assert.NoError(t, err)

	for _, invalid := range []string{"too-short", "invalid-base64-@#$%", "c2hvcnQ="} {
		_, err = NewTokenIssuer(invalid, 0)
		assert.Error(t, err, "секрет %q должен быть отвергнут", invalid)
	}
}

func TestOperatorRepo(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	repo, err := NewOperatorRepo([]config.OperatorConfig{{Name: "Admin", PasswordHash: hash, Level: 4}})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())

	op, err := repo.ValidateCredentials("admin", "s3cret")
	require.NoError(t, err, "имя оператора не зависит от регистра")
	assert.Equal(t, 4, op.Level)

	_, err = repo.ValidateCredentials("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.ValidateCredentials("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, repo.Add(&Operator{Name: "ADMIN"}), ErrOperatorExists)
}
