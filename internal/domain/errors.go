package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInvalidIdentity   = errors.New("identidad del documento inválida para el CDC")
	ErrTerminalState     = errors.New("el documento está en un estado final")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrPayloadRequired   = errors.New("el documento no tiene XML firmado para enviar")
	ErrNoActiveTimbrado  = errors.New("no hay timbrado vigente para el establecimiento y punto de expedición")
)
