package cmd

import (
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	"github.com/jhoicas/sifen-api/pkg/config"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

func newCertCmd(out func(*cobra.Command) printer) *cobra.Command {
	cert := &cobra.Command{
		Use:   "cert",
		Short: "Operaciones sobre el certificado cliente",
	}
	cert.AddCommand(newCertCheckCmd(out))
	return cert
}

func newCertCheckCmd(out func(*cobra.Command) printer) *cobra.Command {
	var certPath, keyPath, password string
	var warnDays int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verifica que el certificado se pueda leer y esté vigente",
		Long: `Lee el certificado (.p12/.pfx o PEM) con las mismas reglas que el servicio.
Sin flags se usan SIFEN_CERT_PATH, SIFEN_CERT_KEY_PATH y SIFEN_CERT_PASSWORD.
Termina con error si el certificado está vencido o no es legible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if certPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				certPath, keyPath = cfg.SIFEN.CertPath, cfg.SIFEN.CertKeyPath
				if password == "" {
					password = cfg.SIFEN.CertPassword
				}
			}
			provider := infrasifen.NewFileCertificateProvider(certPath, keyPath, password)
			c, loadErr := provider.LoadCertificate(cmd.Context())
			if loadErr != nil && !errors.Is(loadErr, pkgsifen.ErrCertificateExpired) {
				return loadErr
			}
			tlsCert, err := infrasifen.ToTLSCertificate(c)
			if err != nil {
				return err
			}
			leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
			if err != nil {
				return fmt.Errorf("certificado ilegible: %w", err)
			}

			days := int(math.Floor(time.Until(c.NotAfter).Hours() / 24))
			if err := out(cmd).print(
				field{"archivo", certPath},
				field{"sujeto", leaf.Subject.String()},
				field{"emisor", leaf.Issuer.String()},
				field{"vigente_desde", c.NotBefore.Format(time.DateOnly)},
				field{"vigente_hasta", c.NotAfter.Format(time.DateOnly)},
				field{"dias_restantes", days},
				field{"vigente", loadErr == nil},
			); err != nil {
				return err
			}
			if loadErr != nil {
				return loadErr
			}
			if days < warnDays {
				fmt.Fprintf(cmd.ErrOrStderr(), "Aviso: el certificado vence en %d días\n", days)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&certPath, "cert", "", "Ruta del certificado (.p12/.pfx o PEM)")
	f.StringVar(&keyPath, "key", "", "Ruta de la llave PEM si viene separada")
	f.StringVar(&password, "password", "", "Contraseña del .p12")
	f.IntVar(&warnDays, "warn-days", 30, "Avisar si faltan menos días para el vencimiento")
	return cmd
}
