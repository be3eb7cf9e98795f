package sifen_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/sifen"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vector de referencia:
//
//	Base = "01" + "80069563" + "1" + "001" + "001" + "0000001" + "20240312" + "12345678"
//	     = "0180069563100100100000012024031212345678"
//	Bloque verificador (módulo 11, pesos 2..7, encadenado) = "4005"
// ──────────────────────────────────────────────────────────────────────────────

const (
	testCDCExpected = "01800695631001001000000120240312123456784005"
	testSecurity    = "12345678"
)

func buildIdentity() sifen.Identity {
	return sifen.Identity{
		DocumentType:     1,
		IssuerRUC:        "80069563",
		IssuerCheckDigit: "1",
		Establishment:    "001",
		Point:            "001",
		Number:           "0000001",
		IssueDate:        time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC),
		SecurityCode:     testSecurity,
	}
}

func TestGenerateCDC_VectorExacto(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	cdc, err := svc.Generate(buildIdentity())
	require.NoError(t, err)
	assert.Equal(t, testCDCExpected, cdc)
}

// TestGenerateCDC_Pura misma identidad y mismo código de seguridad → mismo CDC.
func TestGenerateCDC_Pura(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	c1, err1 := svc.Generate(buildIdentity())
	c2, err2 := svc.Generate(buildIdentity())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, sifen.CDCLength)
	assert.Regexp(t, `^[0-9]{44}$`, c1)
}

// TestGenerateCDC_SensibilidadPorCampo cambiar un solo campo cambia el bloque verificador.
func TestGenerateCDC_SensibilidadPorCampo(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	ref, err := svc.Generate(buildIdentity())
	require.NoError(t, err)
	refBlock := ref[sifen.BaseLength:]

	mutations := map[string]func(*sifen.Identity){
		"tipo":            func(id *sifen.Identity) { id.DocumentType = 2 },
		"ruc":             func(id *sifen.Identity) { id.IssuerRUC = "80069564" },
		"dv":              func(id *sifen.Identity) { id.IssuerCheckDigit = "2" },
		"establecimiento": func(id *sifen.Identity) { id.Establishment = "002" },
		"punto":           func(id *sifen.Identity) { id.Point = "002" },
		"numero":          func(id *sifen.Identity) { id.Number = "0000002" },
		"fecha":           func(id *sifen.Identity) { id.IssueDate = id.IssueDate.AddDate(0, 0, 1) },
		"seguridad":       func(id *sifen.Identity) { id.SecurityCode = "87654321" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			id := buildIdentity()
			mutate(&id)
			cdc, err := svc.Generate(id)
			require.NoError(t, err)
			assert.NotEqual(t, refBlock, cdc[sifen.BaseLength:], "el bloque verificador debe cambiar")
		})
	}
}

// Escenario C: dos sorteos de seguridad distintos → dos CDC distintos y bien formados.
func TestGenerateCDC_DosSorteosDistintos(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()

	id1 := buildIdentity()
	id1.SecurityCode = "12345678"
	id2 := buildIdentity()
	id2.SecurityCode = "87654321"

	c1, err := svc.Generate(id1)
	require.NoError(t, err)
	c2, err := svc.Generate(id2)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
	assert.NoError(t, svc.ValidateControlCode(c1))
	assert.NoError(t, svc.ValidateControlCode(c2))
}

func TestGenerateCDC_CompletaConCeros(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	id := buildIdentity()
	id.Number = "1"
	id.Establishment = "1"
	cdc, err := svc.Generate(id)
	require.NoError(t, err)
	assert.Equal(t, testCDCExpected, cdc, "los campos cortos se completan con ceros a la izquierda")
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestGenerateCDC_ErroresDeIdentidad(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	cases := map[string]func(*sifen.Identity){
		"ruc largo":         func(id *sifen.Identity) { id.IssuerRUC = "800695631" },
		"ruc con letras":    func(id *sifen.Identity) { id.IssuerRUC = "8006956A" },
		"dv vacío":          func(id *sifen.Identity) { id.IssuerCheckDigit = "" },
		"dv de dos dígitos": func(id *sifen.Identity) { id.IssuerCheckDigit = "12" },
		"número largo":      func(id *sifen.Identity) { id.Number = "00000001" },
		"punto con guion":   func(id *sifen.Identity) { id.Point = "0-1" },
		"seguridad larga":   func(id *sifen.Identity) { id.SecurityCode = "123456789" },
		"seguridad vacía":   func(id *sifen.Identity) { id.SecurityCode = "" },
		"tipo cero":         func(id *sifen.Identity) { id.DocumentType = 0 },
		"tipo de 3 dígitos": func(id *sifen.Identity) { id.DocumentType = 100 },
		"fecha sin asignar": func(id *sifen.Identity) { id.IssueDate = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			id := buildIdentity()
			mutate(&id)
			_, err := svc.Generate(id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidIdentity), "debe envolver ErrInvalidIdentity")
		})
	}
}

func TestValidateControlCode(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	assert.NoError(t, svc.ValidateControlCode(testCDCExpected))

	tampered := testCDCExpected[:43] + "9"
	assert.ErrorIs(t, svc.ValidateControlCode(tampered), domain.ErrInvalidIdentity)
	assert.ErrorIs(t, svc.ValidateControlCode(testCDCExpected[:40]), domain.ErrInvalidIdentity)
	assert.ErrorIs(t, svc.ValidateControlCode("A"+testCDCExpected[1:]), domain.ErrInvalidIdentity)
}

func TestParseControlCode(t *testing.T) {
	svc := sifen.NewCDCGeneratorService()
	id, err := svc.Parse(testCDCExpected)
	require.NoError(t, err)

	assert.Equal(t, 1, id.DocumentType)
	assert.Equal(t, "80069563", id.IssuerRUC)
	assert.Equal(t, "1", id.IssuerCheckDigit)
	assert.Equal(t, "001", id.Establishment)
	assert.Equal(t, "001", id.Point)
	assert.Equal(t, "0000001", id.Number)
	assert.Equal(t, "2024-03-12", id.IssueDate.Format("2006-01-02"))
	assert.Equal(t, testSecurity, id.SecurityCode)

	again, err := svc.Generate(id)
	require.NoError(t, err)
	assert.Equal(t, testCDCExpected, again)
}

func TestNewSecurityCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := sifen.NewSecurityCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{8}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45, "los sorteos no deben repetirse de forma sistemática")
}
