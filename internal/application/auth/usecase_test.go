package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/pkg/jwt"
)

func newUseCase(t *testing.T) *AuthUseCase {
	t.Helper()
	hash, err := HashPassword("clave")
	require.NoError(t, err)
	uc, err := NewAuthUseCase([]entity.Operator{
		{Username: "ana", Role: entity.RoleOperador, PasswordHash: hash},
	}, JWTConfig{Secret: "secreto", ExpMinutes: 5, Issuer: "sifen-api"})
	require.NoError(t, err)
	return uc
}

func TestLogin_OK(t *testing.T) {
	uc := newUseCase(t)
	res, err := uc.Login(context.Background(), dto.LoginRequest{Username: "ana", Password: "clave"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleOperador, res.Operator.Role)

	op, role, err := jwt.Parse("secreto", res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana", op)
	assert.Equal(t, entity.RoleOperador, role)
}

func TestLogin_Rechazos(t *testing.T) {
	uc := newUseCase(t)
	_, err := uc.Login(context.Background(), dto.LoginRequest{Username: "ana", Password: "otra"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = uc.Login(context.Background(), dto.LoginRequest{Username: "nadie", Password: "clave"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = uc.Login(context.Background(), dto.LoginRequest{Username: "ana"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewAuthUseCase_Validacion(t *testing.T) {
	_, err := NewAuthUseCase([]entity.Operator{{Username: "x", Role: "bodeguero", PasswordHash: "h"}}, JWTConfig{})
	assert.Error(t, err)

	_, err = NewAuthUseCase([]entity.Operator{
		{Username: "x", Role: entity.RoleAdmin, PasswordHash: "h"},
		{Username: "x", Role: entity.RoleAdmin, PasswordHash: "h"},
	}, JWTConfig{})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}
