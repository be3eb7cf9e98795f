package sifen

import (
	"strings"
	"time"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	baseURLTest = "https://sifen-test.set.gov.py"
	baseURLProd = "https://sifen.set.gov.py"

	pathConsulta  = "/de/ws/consultas/consulta.wsdl"
	pathRecepcion = "/de/ws/sync/recibe.wsdl"
	pathEventos   = "/de/ws/eventos/evento.wsdl"
)

// Valores por defecto de la política de reintentos y timeouts.
const (
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = 500 * time.Millisecond
	DefaultQueryTimeout    = 15 * time.Second
	DefaultSubmitTimeout   = 60 * time.Second
	DefaultEventTimeout    = 30 * time.Second
	DefaultMaxRoundElapsed = 3 * time.Minute
	DefaultDescriptionTTL  = 10 * time.Minute
	DefaultFallbackTTL     = time.Minute
)

// ClientConfig configuración del cliente SIFEN.
type ClientConfig struct {
	Env             string // test | prod
	BaseURL         string // opcional; reemplaza la URL del ambiente
	MaxAttempts     int
	BackoffBase     time.Duration
	QueryTimeout    time.Duration
	SubmitTimeout   time.Duration
	EventTimeout    time.Duration
	MaxRoundElapsed time.Duration
	DescriptionTTL  time.Duration
	// DescriptionTimeout acota cada fuente de descripción; por defecto QueryTimeout.
	DescriptionTimeout time.Duration
	// FallbackTTL vigencia en caché de una descripción no live (WSDL embebido).
	FallbackTTL time.Duration
}

// withDefaults completa los valores vacíos.
func (c ClientConfig) withDefaults() ClientConfig {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = pkgsifen.EnvTest
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.EventTimeout <= 0 {
		c.EventTimeout = DefaultEventTimeout
	}
	if c.MaxRoundElapsed <= 0 {
		c.MaxRoundElapsed = DefaultMaxRoundElapsed
	}
	if c.DescriptionTTL <= 0 {
		c.DescriptionTTL = DefaultDescriptionTTL
	}
	if c.DescriptionTimeout <= 0 {
		c.DescriptionTimeout = c.QueryTimeout
	}
	if c.FallbackTTL <= 0 {
		c.FallbackTTL = DefaultFallbackTTL
	}
	return c
}

// baseURL URL base según ambiente u override.
func (c ClientConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if pkgsifen.IsProduction(c.Env) {
		return baseURLProd
	}
	return baseURLTest
}

// endpoint URL del servicio (sin ?wsdl) para la operación.
func (c ClientConfig) endpoint(op Operation) string {
	switch op {
	case OpSubmit:
		return c.baseURL() + pathRecepcion
	case OpEvent:
		return c.baseURL() + pathEventos
	default:
		return c.baseURL() + pathConsulta
	}
}

// timeout por intento según la clase de operación.
func (c ClientConfig) timeout(op Operation) time.Duration {
	switch op {
	case OpSubmit:
		return c.SubmitTimeout
	case OpEvent:
		return c.EventTimeout
	default:
		return c.QueryTimeout
	}
}
