package sifen

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// maxResponseBytes límite de lectura de respuestas del WS.
const maxResponseBytes = 2 << 20

// Resultados de intento para métricas y log.
const (
	outcomeOK        = "ok"
	outcomeNegative  = "negative"
	outcomeTransport = "transport"
	outcomeAuth      = "authentication"
	outcomeRejection = "rejection"
)

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa RemoteClient contra el WS SIFEN usando SOAP 1.2 sobre mTLS.
// Es seguro para uso concurrente: el certificado y las descripciones estáticas
// son inmutables y se comparten entre llamadas.
type SOAPClient struct {
	cfg      ClientConfig
	certs    pkgsifen.CertificateProvider
	sources  []DescriptionSource
	resolver *DescriptionResolver
	rootCAs  *x509.CertPool
	log      zerolog.Logger
	metrics  *Metrics
	now      func() time.Time
	onRetry  func(attempt int, wait time.Duration)

	mu         sync.Mutex
	httpCert   *pkgsifen.Certificate // certificado con el que se armó httpClient
	httpClient *http.Client
	httpReady  bool
}

var _ RemoteClient = (*SOAPClient)(nil)

// Option configura el cliente.
type Option func(*SOAPClient)

// WithLogger inyecta el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *SOAPClient) { c.log = l }
}

// WithMetrics inyecta las métricas.
func WithMetrics(m *Metrics) Option {
	return func(c *SOAPClient) { c.metrics = m }
}

// WithCertificateProvider inyecta el proveedor del certificado cliente.
func WithCertificateProvider(p pkgsifen.CertificateProvider) Option {
	return func(c *SOAPClient) { c.certs = p }
}

// WithRootCAs reemplaza el pool de CAs de confianza (por defecto el del sistema).
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *SOAPClient) { c.rootCAs = pool }
}

// WithDescriptionSources reemplaza la cadena de fuentes de descripción (live → static).
func WithDescriptionSources(sources ...DescriptionSource) Option {
	return func(c *SOAPClient) { c.sources = sources }
}

// WithRetryObserver recibe el número de intento fallido y la espera antes del siguiente.
func WithRetryObserver(fn func(attempt int, wait time.Duration)) Option {
	return func(c *SOAPClient) { c.onRetry = fn }
}

// WithClock reemplaza la fuente de tiempo (vigencia del certificado, dId).
func WithClock(now func() time.Time) Option {
	return func(c *SOAPClient) { c.now = now }
}

// NewSOAPClient construye el cliente con la configuración dada.
func NewSOAPClient(cfg ClientConfig, opts ...Option) *SOAPClient {
	c := &SOAPClient{
		cfg: cfg.withDefaults(),
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = NewDescriptionResolver(DescriptionPolicy{
		TTL:           c.cfg.DescriptionTTL,
		FallbackTTL:   c.cfg.FallbackTTL,
		SourceTimeout: c.cfg.DescriptionTimeout,
	}, c.log, c.metrics, c.sources...)
	return c
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// QueryStatus consulta el estado de un DE por CDC (rEnviConsDeRequest).
func (c *SOAPClient) QueryStatus(ctx context.Context, cdc string) (*RemoteResult, error) {
	if len(cdc) != 44 || !isNumeric(cdc) {
		return nil, newRemoteError(KindRejection, OpQuery, fmt.Errorf("CDC inválido %q", cdc))
	}
	return c.call(ctx, OpQuery, func(dID string) ([]byte, error) {
		return buildQueryEnvelope(dID, cdc)
	})
}

// SubmitDocument envía el DE firmado (rEnviDe).
func (c *SOAPClient) SubmitDocument(ctx context.Context, payload []byte) (*RemoteResult, error) {
	return c.call(ctx, OpSubmit, func(dID string) ([]byte, error) {
		return buildSubmitEnvelope(dID, payload)
	})
}

// SubmitEvent envía un evento firmado (rEnviEventoDe).
func (c *SOAPClient) SubmitEvent(ctx context.Context, payload []byte) (*RemoteResult, error) {
	return c.call(ctx, OpEvent, func(dID string) ([]byte, error) {
		return buildEventEnvelope(dID, payload)
	})
}

// call ejecuta una ronda completa: credencial → descripción → intentos con backoff.
func (c *SOAPClient) call(ctx context.Context, op Operation, build func(dID string) ([]byte, error)) (*RemoteResult, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCall(op, time.Since(start)) }()

	log := c.log.With().Str("operacion", string(op)).Str("ambiente", c.cfg.Env).Logger()

	// 1. Credencial: sin red si falta o está vencida en producción
	httpClient, err := c.httpClientFor(ctx, op)
	if err != nil {
		log.Error().Err(err).Msg("credencial SIFEN no disponible")
		return nil, err
	}

	envelope, err := build(nextRequestID(c.now()))
	if err != nil {
		return nil, newRemoteError(KindRejection, op, err)
	}

	roundCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxRoundElapsed)
	defer cancel()

	// 2. Descripción del servicio (live → static)
	desc, err := c.resolver.Resolve(roundCtx, DescriptionRequest{
		Service:  op,
		Endpoint: c.cfg.endpoint(op),
		HTTP:     httpClient,
	})
	if err != nil {
		return nil, &RemoteError{Kind: KindTransport, Op: op, Err: err}
	}
	if !desc.HasOperation(wsdlOperations[op]) {
		return nil, &RemoteError{Kind: KindTransport, Op: op,
			Err: fmt.Errorf("la descripción (%s) no declara %s", desc.Source, wsdlOperations[op])}
	}

	// 3. Intentos con backoff exponencial sin jitter
	attempts := 0
	operation := func() (*RemoteResult, error) {
		attempts++
		attemptCtx, cancelAttempt := context.WithTimeout(roundCtx, c.cfg.timeout(op))
		defer cancelAttempt()

		res, err := c.post(attemptCtx, httpClient, op, desc.Endpoint, envelope)
		if err != nil {
			c.metrics.IncAttempt(op, outcomeFor(KindOf(err)))
			if !IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if res.Success {
			c.metrics.IncAttempt(op, outcomeOK)
		} else {
			c.metrics.IncAttempt(op, outcomeNegative)
		}
		return res, nil
	}
	notify := func(err error, wait time.Duration) {
		if c.onRetry != nil {
			c.onRetry(attempts, wait)
		}
		log.Warn().Err(err).
			Int("intento", attempts).
			Dur("espera", wait).
			Msg("llamada SIFEN fallida, reintentando")
	}

	res, err := backoff.RetryNotifyWithData(operation, c.newBackOff(roundCtx), notify)
	if err != nil {
		rerr := c.finalError(ctx, roundCtx, op, err)
		rerr.Attempts = attempts
		if rerr.Kind == KindAuthentication {
			// El servicio pudo haber cambiado de dirección o de política de acceso.
			c.resolver.Invalidate(op)
		}
		log.Error().Err(rerr).Int("intentos", attempts).Str("fuente", desc.Source).Msg("llamada SIFEN sin respuesta")
		return nil, rerr
	}

	res.Attempts = attempts
	res.Source = desc.Source
	var ev *zerolog.Event
	if negative := res.Err(); negative != nil {
		ev = log.Warn().Err(negative)
	} else {
		ev = log.Info()
	}
	ev.Str("codigo", res.Code).
		Str("mensaje", res.Message).
		Bool("exito", res.Success).
		Int("intentos", attempts).
		Str("fuente", desc.Source).
		Msg("respuesta SIFEN")
	return res, nil
}

// newBackOff espera base·2^n entre intentos, sin jitter, acotado por intentos y ronda.
func (c *SOAPClient) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.BackoffBase),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(c.cfg.MaxRoundElapsed),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxAttempts-1)), ctx)
}

// finalError normaliza el error final de la ronda a *RemoteError.
func (c *SOAPClient) finalError(parent, round context.Context, op Operation, err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		out := *re
		return &out
	}
	switch {
	case parent.Err() != nil:
		return &RemoteError{Kind: KindTransport, Op: op, Err: fmt.Errorf("llamada cancelada: %w", parent.Err())}
	case round.Err() != nil:
		return &RemoteError{Kind: KindTransport, Op: op,
			Err: fmt.Errorf("ronda excedió %s: %w", c.cfg.MaxRoundElapsed, round.Err())}
	}
	return &RemoteError{Kind: KindTransport, Op: op, Err: err}
}

// post un intento: envía el envelope y clasifica la respuesta.
func (c *SOAPClient) post(ctx context.Context, httpClient *http.Client, op Operation, endpoint string, envelope []byte) (*RemoteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, newRemoteError(KindTransport, op, fmt.Errorf("crear request: %w", err))
	}
	req.Header.Set("Content-Type", contentTypeSOAP12)

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newRemoteError(KindTransport, op, fmt.Errorf("timeout o cancelación: %w", ctx.Err()))
		}
		return nil, newRemoteError(KindTransport, op, fmt.Errorf("llamada HTTP fallida: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newRemoteError(KindTransport, op, fmt.Errorf("leer respuesta: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, newRemoteError(KindAuthentication, op, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	// Un 5xx con página HTML es una caída del servicio o del balanceador, no un rechazo del certificado.
	if resp.StatusCode >= http.StatusInternalServerError && !looksLikeSOAP(raw) {
		return nil, newRemoteError(KindTransport, op, fmt.Errorf("HTTP %d sin envelope SOAP", resp.StatusCode))
	}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		return nil, newRemoteError(KindAuthentication, op, fmt.Errorf("respuesta HTML (HTTP %d), certificado rechazado", resp.StatusCode))
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, newRemoteError(KindTransport, op, fmt.Errorf("HTTP %d: %w", resp.StatusCode, err))
		}
		if looksLikeLoginPage(raw) {
			return nil, newRemoteError(KindAuthentication, op, fmt.Errorf("página de login en lugar de SOAP"))
		}
		return nil, newRemoteError(KindTransport, op, err)
	}

	if parsed.Fault != nil {
		ferr := fmt.Errorf("SOAP Fault [%s]: %s", parsed.Fault.Code, parsed.Fault.Reason)
		if parsed.Fault.receiverSide() {
			return nil, newRemoteError(KindTransport, op, ferr)
		}
		return nil, newRemoteError(KindRejection, op, ferr)
	}

	return &RemoteResult{
		Success:     successFor(op, parsed.Code),
		Code:        parsed.Code,
		Message:     parsed.Message,
		Status:      parsed.Status,
		ProcessedAt: parsed.ProcessedAt,
	}, nil
}

// ── Credencial y transporte mTLS ──────────────────────────────────────────────

// httpClientFor devuelve el cliente HTTP con el certificado vigente adjunto.
// En producción la ausencia o vencimiento del certificado corta antes de la red.
func (c *SOAPClient) httpClientFor(ctx context.Context, op Operation) (*http.Client, error) {
	production := pkgsifen.IsProduction(c.cfg.Env)

	var cert *pkgsifen.Certificate
	if c.certs != nil {
		loaded, err := c.certs.LoadCertificate(ctx)
		switch {
		case err == nil:
			cert = loaded
		case errors.Is(err, pkgsifen.ErrCertificateExpired):
			if production {
				return nil, newRemoteError(KindCertificateExpired, op, err)
			}
			c.log.Warn().Err(err).Msg("certificado vencido, se continúa sin certificado en ambiente de pruebas")
		default:
			if production {
				return nil, newRemoteError(KindMissingCredential, op, fmt.Errorf("%w: %v", ErrMissingCredential, err))
			}
			c.log.Warn().Err(err).Msg("certificado no disponible, se continúa sin certificado en ambiente de pruebas")
		}
	}
	if cert == nil && production {
		return nil, newRemoteError(KindMissingCredential, op, ErrMissingCredential)
	}
	if cert != nil && production && !cert.ValidAt(c.now()) {
		return nil, newRemoteError(KindCertificateExpired, op, pkgsifen.ErrCertificateExpired)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpReady && c.httpCert == cert {
		return c.httpClient, nil
	}

	// Renegociación habilitada: SIFEN pide el certificado cliente tras el handshake.
	tlsConfig := &tls.Config{
		RootCAs:       c.rootCAs,
		Renegotiation: tls.RenegotiateFreelyAsClient,
		MinVersion:    tls.VersionTLS12,
	}
	if cert != nil {
		tlsCert, err := ToTLSCertificate(cert)
		if err != nil {
			return nil, newRemoteError(KindMissingCredential, op, fmt.Errorf("%w: %v", ErrMissingCredential, err))
		}
		tlsConfig.Certificates = []tls.Certificate{tlsCert}
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
			Proxy:           http.ProxyFromEnvironment,
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}
	c.httpCert = cert
	c.httpReady = true
	return c.httpClient, nil
}

func outcomeFor(kind ErrorKind) string {
	switch kind {
	case KindAuthentication:
		return outcomeAuth
	case KindRejection:
		return outcomeRejection
	case KindTransport:
		return outcomeTransport
	}
	return string(kind)
}
