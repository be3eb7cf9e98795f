package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd arma el árbol de comandos. Cada llamada devuelve flags nuevos.
func NewRootCmd() *cobra.Command {
	var outputFormat string

	root := &cobra.Command{
		Use:   "sifenctl",
		Short: "Herramientas de operación para SIFEN (Paraguay)",
		Long: `sifenctl reúne tareas de soporte del servicio de documentos electrónicos.

Ejemplos:
  # Generar un CDC
  sifenctl cdc generate --ruc 80069563 --numero 1 --fecha 2024-03-12

  # Verificar y descomponer un CDC
  sifenctl cdc verify 01800695631001001000000120240312123456784005

  # Consultar el estado de un DE en SIFEN (usa SIFEN_* del entorno)
  sifenctl status 01800695631001001000000120240312123456784005

  # Revisar la vigencia del certificado
  sifenctl cert check

  # Hash bcrypt para AUTH_OPERATORS
  sifenctl hash-password secreto`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Formato de salida (text, json)")

	out := func(cmd *cobra.Command) printer {
		return printer{w: cmd.OutOrStdout(), json: outputFormat == "json"}
	}
	root.AddCommand(
		newCDCCmd(out),
		newStatusCmd(out),
		newCertCmd(out),
		newHashPasswordCmd(),
	)
	return root
}

// Execute ejecuta sifenctl con los argumentos del proceso.
func Execute() error {
	return NewRootCmd().Execute()
}

// printer escribe pares clave/valor en texto o un objeto JSON.
type printer struct {
	w    io.Writer
	json bool
}

type field struct {
	key   string
	value any
}

func (p printer) print(fields ...field) error {
	if p.json {
		obj := make(map[string]any, len(fields))
		for _, f := range fields {
			obj[f.key] = f.value
		}
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(p.w, "%-16s %v\n", f.key+":", f.value); err != nil {
			return err
		}
	}
	return nil
}
