package sifen

import (
	"fmt"
	"unicode"
)

// rucBaseMax es el peso máximo del módulo 11 usado por la SET para el RUC.
// Los pesos van de 2 a 11 recorriendo el RUC de derecha a izquierda.
const rucBaseMax = 11

// ComputeRUCCheckDigit calcula el dígito verificador de un RUC (solo dígitos, sin DV).
func ComputeRUCCheckDigit(ruc string) (byte, error) {
	digits := extractDigits(ruc)
	if len(digits) == 0 || len(digits) > 8 {
		return 0, fmt.Errorf("sifen: el RUC debe tener entre 1 y 8 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	k := 2
	for i := len(digits) - 1; i >= 0; i-- {
		if k > rucBaseMax {
			k = 2
		}
		sum += int(digits[i]-'0') * k
		k++
	}
	remainder := sum % 11
	if remainder <= 1 {
		return '0', nil
	}
	return byte('0' + (11 - remainder)), nil
}

// ValidateRUCCheckDigit valida que dv sea el dígito verificador del RUC.
func ValidateRUCCheckDigit(ruc, dv string) error {
	expected, err := ComputeRUCCheckDigit(ruc)
	if err != nil {
		return err
	}
	if len(dv) != 1 || dv[0] != expected {
		return fmt.Errorf("sifen: dígito verificador del RUC inválido: esperado %c, recibido %q", expected, dv)
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
