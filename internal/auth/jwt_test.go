package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/models"
)

func TestSignAndValidate(t *testing.T) {
	svc := NewJWTService("secret")
	id := uuid.New()
	tok, err := svc.Sign(id, models.RoleFaculty, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleFaculty, claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tok, err := NewJWTService("one").Sign(uuid.New(), models.RoleUser, time.Hour)
	require.NoError(t, err)
	_, err = NewJWTService("two").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret")
	tok, err := svc.Sign(uuid.New(), models.RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   models.Role("superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewJWTService("secret").Validate(tok)
	assert.ErrorIs(t, err, ErrUnknownRole)
}
