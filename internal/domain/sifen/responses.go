package sifen

import (
	"strings"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// Outcome interpretación de una respuesta definitiva o no del WS SIFEN.
type Outcome struct {
	Class        pkgsifen.ResponseClass
	Target       entity.DocumentState // estado destino; vacío si no hay transición
	Observation  string
	Transient    bool // falla temporal del lado de SIFEN
	Unrecognized bool // código fuera de la tabla conciliada
}

// HasTransition indica si la respuesta implica un cambio de estado.
func (o Outcome) HasTransition() bool {
	return o.Target != ""
}

// Interpret traduce código + mensaje al estado destino según la tabla de respuestas.
func Interpret(code, message string) Outcome {
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	class := pkgsifen.ClassifyCode(code)

	out := Outcome{Class: class, Observation: observation(code, message)}
	switch class {
	case pkgsifen.ClassApproved:
		out.Target = entity.StateAccepted
		out.Observation = "aceptado: " + message
	case pkgsifen.ClassRejected:
		out.Target = entity.StateRejected
	case pkgsifen.ClassCancelled:
		out.Target = entity.StateCancelled
	case pkgsifen.ClassVoided:
		out.Target = entity.StateVoided
	case pkgsifen.ClassTransient:
		out.Transient = true
	default:
		out.Unrecognized = true
	}
	return out
}

// CanTransition reglas de transición por respuesta remota: un estado final
// nunca vuelve atrás, salvo ACCEPTED → CANCELLED.
func CanTransition(from, to entity.DocumentState) bool {
	if from == to || to == "" {
		return false
	}
	if from == entity.StateAccepted && to == entity.StateCancelled {
		return true
	}
	return !from.IsTerminal()
}

func observation(code, message string) string {
	switch {
	case code == "" && message == "":
		return "respuesta sin código"
	case message == "":
		return code
	case code == "":
		return message
	}
	return code + " - " + message
}
