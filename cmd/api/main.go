package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/sifen-api/internal/application/auth"
	"github.com/jhoicas/sifen-api/internal/application/billing"
	"github.com/jhoicas/sifen-api/internal/application/eventlog"
	"github.com/jhoicas/sifen-api/internal/application/issuer"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	"github.com/jhoicas/sifen-api/internal/infrastructure/memory"
	"github.com/jhoicas/sifen-api/internal/infrastructure/postgres"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	"github.com/jhoicas/sifen-api/internal/infrastructure/sifen/signer"
	httpRouter "github.com/jhoicas/sifen-api/internal/interfaces/http"
	"github.com/jhoicas/sifen-api/pkg/config"
	"github.com/jhoicas/sifen-api/pkg/logger"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// storage reúne los repositorios del backend elegido en APP_STORAGE.
type storage struct {
	docs      repository.DocumentRepository
	events    repository.DocumentEventRepository
	issuers   repository.IssuerRepository
	timbrados repository.TimbradoRepository
	tx        billing.DocumentTxRunner
	health    func() error
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Str("sifen_env", cfg.SIFEN.Environment).
		Msg("iniciando aplicación")

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer store.close()

	// Cliente SOAP SIFEN: reintentos, fallback de WSDL y mTLS con el certificado del emisor.
	certs := infrasifen.NewFileCertificateProvider(cfg.SIFEN.CertPath, cfg.SIFEN.CertKeyPath, cfg.SIFEN.CertPassword)
	soapClient := infrasifen.NewSOAPClient(infrasifen.ClientConfig{
		Env:                cfg.SIFEN.Environment,
		BaseURL:            cfg.SIFEN.BaseURL,
		MaxAttempts:        cfg.SIFEN.MaxAttempts,
		BackoffBase:        cfg.SIFEN.BackoffBase,
		QueryTimeout:       cfg.SIFEN.QueryTimeout,
		SubmitTimeout:      cfg.SIFEN.SubmitTimeout,
		EventTimeout:       cfg.SIFEN.EventTimeout,
		MaxRoundElapsed:    cfg.SIFEN.MaxRound,
		DescriptionTTL:     cfg.SIFEN.DescriptionTTL,
		DescriptionTimeout: cfg.SIFEN.DescriptionTimeout,
		FallbackTTL:        cfg.SIFEN.FallbackTTL,
	},
		infrasifen.WithLogger(log.Component("sifen")),
		infrasifen.WithMetrics(infrasifen.NewMetrics(reg)),
		infrasifen.WithCertificateProvider(certs),
	)

	events := eventlog.New(store.events, nil)
	lifecycle := billing.NewLifecycle(store.docs, store.tx, events, soapClient,
		billing.WithLogger(log.Component("lifecycle")),
		billing.WithMetrics(billing.NewMetrics(reg)),
	)
	createDocumentUC := billing.NewCreateDocumentUseCase(store.issuers, store.timbrados, store.docs, lifecycle)
	payloads := billing.NewPayloadService(
		lifecycle, store.issuers, store.timbrados,
		infrasifen.NewXMLBuilderService(), newSigner(ctx, cfg, certs, log), log.Component("payload"),
	)
	issuerUC := issuer.NewUseCase(store.issuers, store.timbrados)

	operators := make([]entity.Operator, 0, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		operators = append(operators, entity.Operator{Username: op.Username, Role: op.Role, PasswordHash: op.PasswordHash})
	}
	if len(operators) == 0 {
		log.Warn().Msg("AUTH_OPERATORS vacío: nadie podrá obtener token")
	}
	authUC, err := auth.NewAuthUseCase(operators, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("operadores inválidos")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Lifecycle: lifecycle,
		Create:    createDocumentUC,
		Payloads:  payloads,
		IssuerUC:  issuerUC,
		AuthUC:    authUC,
		JWTSecret: cfg.JWT.Secret,
		Gatherer:  reg,
		Health:    store.health,
		Log:       log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.App.Storage == config.StorageMemory {
		log.Warn().Msg("almacenamiento en memoria: los documentos se pierden al reiniciar")
		s := memory.NewStore()
		return &storage{
			docs:      s.Documents(),
			events:    s.Events(),
			issuers:   s.Issuers(),
			timbrados: s.Timbrados(),
			tx:        memory.NewTxRunner(s),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("migraciones aplicadas")
	}
	return &storage{
		docs:      postgres.NewDocumentRepository(pool),
		events:    postgres.NewDocumentEventRepository(pool),
		issuers:   postgres.NewIssuerRepository(pool),
		timbrados: postgres.NewTimbradoRepository(pool),
		tx:        postgres.NewTxRunner(pool),
		health:    pingHealth(pool),
		close:     pool.Close,
	}, nil
}

func pingHealth(pool *pgxpool.Pool) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// newSigner devuelve el firmante XMLDSig con el certificado del emisor. Sin
// firma habilitada o sin certificado utilizable se adjunta el XML tal cual.
func newSigner(ctx context.Context, cfg *config.Config, certs pkgsifen.CertificateProvider, log *logger.Logger) pkgsifen.Signer {
	if !cfg.SIFEN.SigningEnabled {
		log.Info().Msg("firma deshabilitada (SIFEN_SIGNING_ENABLED=false)")
		return pkgsifen.PassthroughSigner{}
	}
	cert, err := certs.LoadCertificate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sin certificado para firmar: los DE se adjuntan sin firma")
		return pkgsifen.PassthroughSigner{}
	}
	tlsCert, err := infrasifen.ToTLSCertificate(cert)
	if err != nil {
		log.Warn().Err(err).Msg("certificado ilegible: los DE se adjuntan sin firma")
		return pkgsifen.PassthroughSigner{}
	}
	svc, err := signer.NewDigitalSignatureService(tlsCert)
	if err != nil {
		log.Warn().Err(err).Msg("firmante no disponible: los DE se adjuntan sin firma")
		return pkgsifen.PassthroughSigner{}
	}
	return svc
}
