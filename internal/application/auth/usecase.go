package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase login de operadores contra el directorio configurado.
type AuthUseCase struct {
	operators map[string]entity.Operator
	jwtCfg    JWTConfig
}

// NewAuthUseCase construye el caso de uso. Rechaza roles desconocidos y usuarios repetidos.
func NewAuthUseCase(operators []entity.Operator, jwtCfg JWTConfig) (*AuthUseCase, error) {
	dir := make(map[string]entity.Operator, len(operators))
	for _, op := range operators {
		if !entity.ValidRole(op.Role) {
			return nil, fmt.Errorf("operador %s: rol %q desconocido", op.Username, op.Role)
		}
		if _, dup := dir[op.Username]; dup {
			return nil, fmt.Errorf("operador %s: %w", op.Username, domain.ErrDuplicate)
		}
		dir[op.Username] = op
	}
	return &AuthUseCase{operators: dir, jwtCfg: jwtCfg}, nil
}

// Login verifica usuario/password con bcrypt y emite el JWT.
func (uc *AuthUseCase) Login(_ context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("usuario y password obligatorios: %w", domain.ErrInvalidInput)
	}
	op, ok := uc.operators[in.Username]
	if !ok {
		// Mismo error que password incorrecto para no revelar usuarios
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, op.Username, op.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token:    token,
		Operator: dto.OperatorResponse{Username: op.Username, Role: op.Role},
	}, nil
}

// HashPassword genera el hash bcrypt para AUTH_OPERATORS.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password vacío: %w", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
