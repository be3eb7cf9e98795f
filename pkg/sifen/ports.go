package sifen

import (
	"context"
	"errors"
	"time"
)

// Errores del proveedor de certificados.
var (
	ErrCertificateUnavailable = errors.New("sifen: certificado no disponible")
	ErrCertificateExpired     = errors.New("sifen: certificado vencido o aún no vigente")
)

// Signer firma el XML del documento electrónico (DE o evento).
type Signer interface {
	Sign(documentBytes []byte) ([]byte, error)
}

// PassthroughSigner se usa cuando la firma está deshabilitada en configuración:
// devuelve los mismos bytes recibidos.
type PassthroughSigner struct{}

// Sign implementa Signer.
func (PassthroughSigner) Sign(documentBytes []byte) ([]byte, error) {
	return documentBytes, nil
}

// DocumentBuilder construye el XML del DE y de sus eventos a partir de datos de negocio.
type DocumentBuilder interface {
	Build(issuerParams, documentData map[string]any, options map[string]any) ([]byte, error)
	BuildEvent(eventID string, issuerParams, eventData map[string]any, options map[string]any) ([]byte, error)
}

// Certificate certificado cliente tal como lo entrega el proveedor de credenciales.
// Es de solo lectura una vez cargado y se comparte entre llamadas concurrentes.
type Certificate struct {
	Data       []byte // contenido .p12/.pfx o PEM (certificado + llave)
	KeyData    []byte // llave privada PEM cuando viene en archivo separado
	Passphrase string
	NotBefore  time.Time
	NotAfter   time.Time
}

// ValidAt indica si el certificado está vigente en t.
func (c *Certificate) ValidAt(t time.Time) bool {
	return c != nil && !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// CertificateProvider entrega el certificado cliente para autenticación mutua.
// Debe fallar con ErrCertificateUnavailable o ErrCertificateExpired.
type CertificateProvider interface {
	LoadCertificate(ctx context.Context) (*Certificate, error)
}
