// Package sifen implementa el cliente resiliente del WS SIFEN (consulta, recepción y eventos).
package sifen

import (
	"context"
	"fmt"
	"time"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// Operation clase de operación remota; define el servicio, el timeout y la métrica.
type Operation string

const (
	OpQuery  Operation = "consulta"
	OpSubmit Operation = "recepcion"
	OpEvent  Operation = "evento"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// RemoteClient define el puerto de salida hacia el WS SIFEN.
// La implementación concreta usa SOAP 1.2; para tests se puede inyectar un fake.
type RemoteClient interface {
	// QueryStatus consulta el estado de un DE por su CDC.
	QueryStatus(ctx context.Context, cdc string) (*RemoteResult, error)
	// SubmitDocument envía el XML firmado del DE.
	SubmitDocument(ctx context.Context, payload []byte) (*RemoteResult, error)
	// SubmitEvent envía el XML firmado de un evento (cancelación, inutilización).
	SubmitEvent(ctx context.Context, payload []byte) (*RemoteResult, error)
}

// RemoteResult respuesta bien formada del WS SIFEN. Un resultado negativo no es
// un error de Go: el llamador decide qué hacer con el código.
type RemoteResult struct {
	Success     bool
	Code        string // dCodRes
	Message     string // dMsgRes
	ProcessedAt *time.Time
	Status      string // dEstRes (Aprobado, Rechazado…) si viene en la respuesta
	Attempts    int
	Source      string // fuente de la descripción del servicio usada
}

// Class clase del código de respuesta.
func (r *RemoteResult) Class() pkgsifen.ResponseClass {
	return pkgsifen.ClassifyCode(r.Code)
}

// Err convierte un resultado negativo en error clasificado; nil si fue exitoso.
func (r *RemoteResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	if r.Class() == pkgsifen.ClassTransient {
		return fmt.Errorf("%w: %s %s", ErrTransientRemote, r.Code, r.Message)
	}
	return &RemoteError{
		Kind:     KindRejection,
		Attempts: r.Attempts,
		Err:      fmt.Errorf("%s: %s", r.Code, r.Message),
	}
}

// successFor decide si un código representa éxito para la operación.
func successFor(op Operation, code string) bool {
	if op == OpEvent {
		return pkgsifen.IsEventAccepted(code)
	}
	return pkgsifen.ClassifyCode(code) == pkgsifen.ClassApproved
}
