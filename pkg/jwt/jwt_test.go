package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParse(t *testing.T) {
	token, err := Generate("secreto", "ana", "operador", "sifen-api", 5)
	require.NoError(t, err)

	op, role, err := Parse("secreto", token)
	require.NoError(t, err)
	assert.Equal(t, "ana", op)
	assert.Equal(t, "operador", role)

	_, _, err = Parse("otro", token)
	assert.Error(t, err, "firma con otro secreto")
}

func TestGenerate_Expirado(t *testing.T) {
	token, err := Generate("secreto", "ana", "admin", "sifen-api", -1)
	require.NoError(t, err)
	_, _, err = Parse("secreto", token)
	assert.Error(t, err)
}

func TestSecretVacio(t *testing.T) {
	_, err := Generate("", "ana", "admin", "x", 5)
	assert.Error(t, err)
	_, _, err = Parse("", "abc")
	assert.Error(t, err)
}
