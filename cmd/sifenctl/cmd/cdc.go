package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	domainsifen "github.com/jhoicas/sifen-api/internal/domain/sifen"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

func newCDCCmd(out func(*cobra.Command) printer) *cobra.Command {
	cdc := &cobra.Command{
		Use:   "cdc",
		Short: "Generar o verificar Códigos de Control (CDC)",
	}
	cdc.AddCommand(newCDCGenerateCmd(out), newCDCVerifyCmd(out))
	return cdc
}

func newCDCGenerateCmd(out func(*cobra.Command) printer) *cobra.Command {
	var (
		docType       int
		ruc           string
		checkDigit    string
		establishment string
		point         string
		number        string
		issueDate     string
		security      string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Calcula el CDC de 44 dígitos",
		Long: `Calcula el CDC a partir de la identidad del documento.

Sin --dv se calcula el dígito verificador del RUC. Sin --seguridad se sortea
un código de seguridad de 8 dígitos.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := time.Parse(time.DateOnly, issueDate)
			if err != nil {
				return fmt.Errorf("--fecha %q: se espera AAAA-MM-DD", issueDate)
			}
			if checkDigit == "" {
				dv, err := pkgsifen.ComputeRUCCheckDigit(ruc)
				if err != nil {
					return err
				}
				checkDigit = string(dv)
			}
			if security == "" {
				if security, err = domainsifen.NewSecurityCode(); err != nil {
					return err
				}
			}
			code, err := domainsifen.NewCDCGeneratorService().Generate(domainsifen.Identity{
				DocumentType:     docType,
				IssuerRUC:        ruc,
				IssuerCheckDigit: checkDigit,
				Establishment:    establishment,
				Point:            point,
				Number:           number,
				IssueDate:        date,
				SecurityCode:     security,
			})
			if err != nil {
				return err
			}
			return out(cmd).print(field{"cdc", code}, field{"seguridad", security})
		},
	}
	f := cmd.Flags()
	f.IntVar(&docType, "tipo", 1, "Tipo de documento (1 = factura electrónica)")
	f.StringVar(&ruc, "ruc", "", "RUC del emisor sin DV")
	f.StringVar(&checkDigit, "dv", "", "Dígito verificador del RUC (opcional)")
	f.StringVar(&establishment, "est", "001", "Establecimiento")
	f.StringVar(&point, "punto", "001", "Punto de expedición")
	f.StringVar(&number, "numero", "", "Número del documento")
	f.StringVar(&issueDate, "fecha", "", "Fecha de emisión AAAA-MM-DD")
	f.StringVar(&security, "seguridad", "", "Código de seguridad de 8 dígitos (opcional)")
	_ = cmd.MarkFlagRequired("ruc")
	_ = cmd.MarkFlagRequired("numero")
	_ = cmd.MarkFlagRequired("fecha")
	return cmd
}

func newCDCVerifyCmd(out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <cdc>",
		Short: "Verifica el bloque verificador y descompone el CDC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domainsifen.NewCDCGeneratorService().Parse(args[0])
			if err != nil {
				return err
			}
			return out(cmd).print(
				field{"valido", true},
				field{"tipo", id.DocumentType},
				field{"ruc", id.IssuerRUC + "-" + id.IssuerCheckDigit},
				field{"establecimiento", id.Establishment},
				field{"punto", id.Point},
				field{"numero", id.Number},
				field{"fecha", id.IssueDate.Format(time.DateOnly)},
				field{"seguridad", id.SecurityCode},
			)
		},
	}
}
