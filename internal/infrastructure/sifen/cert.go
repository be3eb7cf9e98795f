// Carga de certificado cliente desde .p12 (PKCS#12) o par PEM.

package sifen

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pkcs12"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// FileCertificateProvider implementa CertificateProvider leyendo el certificado del disco.
// El archivo se lee una sola vez; el resultado es inmutable y se comparte.
type FileCertificateProvider struct {
	certPath   string
	keyPath    string
	passphrase string
	now        func() time.Time

	once sync.Once
	cert *pkgsifen.Certificate
	err  error
}

// NewFileCertificateProvider crea el proveedor. keyPath es opcional (PEM combinado o .p12).
func NewFileCertificateProvider(certPath, keyPath, passphrase string) *FileCertificateProvider {
	return &FileCertificateProvider{
		certPath:   certPath,
		keyPath:    keyPath,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// LoadCertificate implementa pkgsifen.CertificateProvider.
func (p *FileCertificateProvider) LoadCertificate(_ context.Context) (*pkgsifen.Certificate, error) {
	if p.certPath == "" {
		return nil, fmt.Errorf("%w: SIFEN_CERT_PATH no configurado", pkgsifen.ErrCertificateUnavailable)
	}
	p.once.Do(func() {
		p.cert, p.err = p.read()
	})
	if p.err != nil {
		return nil, p.err
	}
	if !p.cert.ValidAt(p.now()) {
		return p.cert, fmt.Errorf("%w: vigente del %s al %s", pkgsifen.ErrCertificateExpired,
			p.cert.NotBefore.Format(time.DateOnly), p.cert.NotAfter.Format(time.DateOnly))
	}
	return p.cert, nil
}

func (p *FileCertificateProvider) read() (*pkgsifen.Certificate, error) {
	data, err := os.ReadFile(p.certPath)
	if err != nil {
		return nil, fmt.Errorf("%w: leer certificado: %v", pkgsifen.ErrCertificateUnavailable, err)
	}
	c := &pkgsifen.Certificate{Data: data, Passphrase: p.passphrase}
	if p.keyPath != "" {
		if c.KeyData, err = os.ReadFile(p.keyPath); err != nil {
			return nil, fmt.Errorf("%w: leer llave privada: %v", pkgsifen.ErrCertificateUnavailable, err)
		}
	}
	tlsCert, err := ToTLSCertificate(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgsifen.ErrCertificateUnavailable, err)
	}
	c.NotBefore = tlsCert.Leaf.NotBefore
	c.NotAfter = tlsCert.Leaf.NotAfter
	return c, nil
}

// ToTLSCertificate convierte el certificado (p12 o PEM) al formato de crypto/tls.
// Leaf siempre queda poblado.
func ToTLSCertificate(c *pkgsifen.Certificate) (tls.Certificate, error) {
	if c == nil || len(c.Data) == 0 {
		return tls.Certificate{}, fmt.Errorf("certificado vacío")
	}
	if isPEM(c.Data) {
		return fromPEM(c)
	}
	return fromP12(c.Data, c.Passphrase)
}

// fromP12 carga certificado y llave privada desde un contenedor .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func fromP12(data []byte, password string) (tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devuelve un solo certificado; basta el certificado hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// fromPEM certificado y llave por separado, o combinados en un solo archivo.
func fromPEM(c *pkgsifen.Certificate) (tls.Certificate, error) {
	keyData := c.KeyData
	if len(keyData) == 0 {
		keyData = c.Data
	}
	cert, err := tls.X509KeyPair(c.Data, keyData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	if cert.Leaf == nil {
		if cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return tls.Certificate{}, fmt.Errorf("parsear certificado: %w", err)
		}
	}
	return cert, nil
}

func isPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil || strings.HasPrefix(strings.TrimSpace(string(data)), "-----BEGIN")
}
