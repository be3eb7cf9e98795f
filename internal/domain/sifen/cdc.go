// Package sifen: generación del CDC (Código de Control) de 44 dígitos.
// Cadena base de 40 dígitos en orden estricto + bloque verificador de 4 dígitos
// calculado con módulo 11 (pesos 2..7).

package sifen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/sifen-api/internal/domain"
)

// Anchos fijos de cada campo de la cadena base.
const (
	widthDocType       = 2
	widthRUC           = 8
	widthCheckDigit    = 1
	widthEstablishment = 3
	widthPoint         = 3
	widthNumber        = 7
	widthDate          = 8
	widthSecurity      = 8

	BaseLength     = 40
	VerifierLength = 4
	CDCLength      = BaseLength + VerifierLength
)

// cdcDateLayout formato de la fecha de emisión dentro del CDC.
const cdcDateLayout = "20060102"

// Identity campos inmutables del documento que componen el CDC.
type Identity struct {
	DocumentType     int
	IssuerRUC        string
	IssuerCheckDigit string
	Establishment    string
	Point            string
	Number           string
	IssueDate        time.Time
	SecurityCode     string
}

// CDCGeneratorService genera y valida códigos de control.
type CDCGeneratorService struct{}

// NewCDCGeneratorService crea el servicio.
func NewCDCGeneratorService() *CDCGeneratorService {
	return &CDCGeneratorService{}
}

// Generate construye el CDC a partir de la identidad. Es una función pura:
// misma identidad y mismo código de seguridad producen el mismo CDC.
// Orden: tipo(2) + RUC(8) + DV(1) + establecimiento(3) + punto(3) + número(7) + fecha(8) + seguridad(8) + verificador(4).
func (s *CDCGeneratorService) Generate(id Identity) (string, error) {
	if id.DocumentType < 1 || id.DocumentType > 99 {
		return "", invalid("tipo de documento %d fuera de rango", id.DocumentType)
	}
	if id.IssueDate.IsZero() {
		return "", invalid("fecha de emisión obligatoria")
	}

	var b strings.Builder
	b.Grow(CDCLength)
	b.WriteString(fmt.Sprintf("%0*d", widthDocType, id.DocumentType))

	fields := []struct {
		name  string
		value string
		width int
	}{
		{"RUC del emisor", id.IssuerRUC, widthRUC},
		{"DV del RUC", id.IssuerCheckDigit, widthCheckDigit},
		{"establecimiento", id.Establishment, widthEstablishment},
		{"punto de expedición", id.Point, widthPoint},
		{"número", id.Number, widthNumber},
	}
	for _, f := range fields {
		padded, err := padNumeric(f.name, f.value, f.width)
		if err != nil {
			return "", err
		}
		b.WriteString(padded)
	}
	b.WriteString(id.IssueDate.Format(cdcDateLayout))

	security, err := padNumeric("código de seguridad", id.SecurityCode, widthSecurity)
	if err != nil {
		return "", err
	}
	b.WriteString(security)

	base := b.String()
	if len(base) != BaseLength {
		return "", invalid("cadena base de %d dígitos, se esperaban %d", len(base), BaseLength)
	}
	return base + verifierBlock(base), nil
}

// ValidateControlCode verifica longitud, contenido numérico y bloque verificador.
func (s *CDCGeneratorService) ValidateControlCode(code string) error {
	if len(code) != CDCLength {
		return invalid("el CDC debe tener %d dígitos, tiene %d", CDCLength, len(code))
	}
	if !isNumeric(code) {
		return invalid("el CDC solo admite dígitos")
	}
	base, verifier := code[:BaseLength], code[BaseLength:]
	if expected := verifierBlock(base); expected != verifier {
		return invalid("bloque verificador %s no coincide (esperado %s)", verifier, expected)
	}
	return nil
}

// Parse descompone un CDC válido en su identidad.
func (s *CDCGeneratorService) Parse(code string) (Identity, error) {
	if err := s.ValidateControlCode(code); err != nil {
		return Identity{}, err
	}
	docType, _ := strconv.Atoi(code[0:2])
	issueDate, err := time.Parse(cdcDateLayout, code[24:32])
	if err != nil {
		return Identity{}, invalid("fecha %s ilegible: %v", code[24:32], err)
	}
	return Identity{
		DocumentType:     docType,
		IssuerRUC:        code[2:10],
		IssuerCheckDigit: code[10:11],
		Establishment:    code[11:14],
		Point:            code[14:17],
		Number:           code[17:24],
		IssueDate:        issueDate,
		SecurityCode:     code[32:40],
	}, nil
}

// NewSecurityCode sortea el bloque de seguridad de 8 dígitos con crypto/rand.
func NewSecurityCode() (string, error) {
	limit := big.NewInt(100_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("sifen: generar código de seguridad: %w", err)
	}
	return fmt.Sprintf("%0*d", widthSecurity, n.Int64()), nil
}

// verifierBlock calcula los 4 dígitos verificadores. Cada dígito es el módulo 11
// de la cadena base extendida con los dígitos verificadores ya calculados.
func verifierBlock(base string) string {
	s := base
	var out [VerifierLength]byte
	for i := range out {
		out[i] = mod11Digit(s)
		s += string(out[i])
	}
	return string(out[:])
}

// mod11Digit suma ponderada con pesos 2..7 desde el dígito más a la derecha.
// Resto < 2 → 0; en otro caso 11 - resto (siempre un solo dígito).
func mod11Digit(digits string) byte {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	remainder := sum % 11
	if remainder < 2 {
		return '0'
	}
	return byte('0' + 11 - remainder)
}

// padNumeric completa con ceros a la izquierda; nunca trunca.
func padNumeric(name, value string, width int) (string, error) {
	if value == "" {
		return "", invalid("%s obligatorio", name)
	}
	if !isNumeric(value) {
		return "", invalid("%s %q solo admite dígitos", name, value)
	}
	if len(value) > width {
		return "", invalid("%s %q excede %d dígitos", name, value, width)
	}
	return strings.Repeat("0", width-len(value)) + value, nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidIdentity}, args...)...)
}
