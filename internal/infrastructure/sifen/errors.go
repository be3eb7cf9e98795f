package sifen

import (
	"errors"
	"fmt"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// ErrorKind taxonomía normalizada de fallas del WS SIFEN.
type ErrorKind string

const (
	// KindTransport red, timeout, HTTP 5xx, XML ilegible o SOAP Fault Receiver. Reintentable.
	KindTransport ErrorKind = "transport"
	// KindAuthentication credencial rechazada (HTTP 401/403 o página HTML de login con estado < 500).
	KindAuthentication ErrorKind = "authentication"
	// KindRejection respuesta bien formada con resultado negativo o SOAP Fault Sender.
	KindRejection ErrorKind = "rejection"
	// KindMissingCredential no hay certificado en un ambiente que lo exige.
	KindMissingCredential ErrorKind = "missing_credential"
	// KindCertificateExpired el certificado está fuera de su vigencia.
	KindCertificateExpired ErrorKind = "certificate_expired"
)

// Sentinelas para errors.Is.
var (
	ErrTransport          = errors.New("sifen: falla de transporte")
	ErrAuthentication     = errors.New("sifen: autenticación rechazada")
	ErrRemoteRejection    = errors.New("sifen: respuesta negativa")
	ErrTransientRemote    = errors.New("sifen: falla transitoria del servicio")
	ErrMissingCredential  = errors.New("sifen: certificado requerido en producción")
	ErrCertificateExpired = pkgsifen.ErrCertificateExpired
)

// RemoteError envuelve una falla con su clasificación, la operación y los intentos realizados.
type RemoteError struct {
	Kind     ErrorKind
	Op       Operation
	Attempts int
	Err      error
}

// Error implementa error.
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sifen %s [%s] tras %d intento(s): %v", e.Op, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("sifen %s [%s] tras %d intento(s)", e.Op, e.Kind, e.Attempts)
}

// Unwrap permite errors.Is/As sobre la causa.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is compara por clase contra las sentinelas del paquete.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrRemoteRejection:
		return e.Kind == KindRejection
	case ErrMissingCredential:
		return e.Kind == KindMissingCredential
	case ErrCertificateExpired:
		return e.Kind == KindCertificateExpired
	}
	return false
}

// Retryable indica si vale la pena reintentar.
func (e *RemoteError) Retryable() bool {
	return e.Kind == KindTransport
}

func newRemoteError(kind ErrorKind, op Operation, err error) *RemoteError {
	return &RemoteError{Kind: kind, Op: op, Err: err}
}

// KindOf extrae la clase de un error; vacío si no es un RemoteError.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsRetryable indica si el error es reintentable.
func IsRetryable(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}
