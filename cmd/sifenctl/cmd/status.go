package cmd

import (
	"os"

	"github.com/spf13/cobra"

	domainsifen "github.com/jhoicas/sifen-api/internal/domain/sifen"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	"github.com/jhoicas/sifen-api/pkg/config"
	"github.com/jhoicas/sifen-api/pkg/logger"
)

func newStatusCmd(out func(*cobra.Command) printer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "status <cdc>",
		Short: "Consulta el estado de un DE en SIFEN",
		Long: `Consulta el DE por CDC con el mismo cliente que usa el servicio
(reintentos, fallback de WSDL y mTLS). Lee SIFEN_* del entorno o de .env.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domainsifen.NewCDCGeneratorService().ValidateControlCode(args[0]); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "error"
			if verbose {
				level = "debug"
			}
			log := logger.New(logger.Config{Env: "production", Level: level, Output: os.Stderr})

			client := infrasifen.NewSOAPClient(infrasifen.ClientConfig{
				Env:                cfg.SIFEN.Environment,
				BaseURL:            cfg.SIFEN.BaseURL,
				MaxAttempts:        cfg.SIFEN.MaxAttempts,
				BackoffBase:        cfg.SIFEN.BackoffBase,
				QueryTimeout:       cfg.SIFEN.QueryTimeout,
				MaxRoundElapsed:    cfg.SIFEN.MaxRound,
				DescriptionTTL:     cfg.SIFEN.DescriptionTTL,
				DescriptionTimeout: cfg.SIFEN.DescriptionTimeout,
				FallbackTTL:        cfg.SIFEN.FallbackTTL,
			},
				infrasifen.WithLogger(log.Component("sifen")),
				infrasifen.WithCertificateProvider(infrasifen.NewFileCertificateProvider(
					cfg.SIFEN.CertPath, cfg.SIFEN.CertKeyPath, cfg.SIFEN.CertPassword)),
			)
			res, err := client.QueryStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outcome := domainsifen.Interpret(res.Code, res.Message)
			fields := []field{
				{"codigo", res.Code},
				{"mensaje", res.Message},
				{"clase", string(res.Class())},
				{"intentos", res.Attempts},
				{"fuente", res.Source},
			}
			if outcome.HasTransition() {
				fields = append(fields, field{"estado", string(outcome.Target)})
			}
			return out(cmd).print(fields...)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log de reintentos en stderr")
	return cmd
}
