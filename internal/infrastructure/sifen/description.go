package sifen

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fuentes de descripción del servicio.
const (
	SourceLive   = "live"
	SourceStatic = "static"
)

//go:embed wsdl/*.wsdl
var staticDescriptions embed.FS

// errNotDescription la respuesta no es una descripción de servicio (p. ej. página de login).
var errNotDescription = errors.New("sifen: la respuesta no es un WSDL")

// ServiceDescription operaciones y dirección declaradas por el WSDL de un servicio.
type ServiceDescription struct {
	Service    Operation
	Endpoint   string
	Operations []string
	Source     string
	LoadedAt   time.Time
}

// HasOperation indica si la descripción declara la operación.
func (d *ServiceDescription) HasOperation(name string) bool {
	for _, op := range d.Operations {
		if op == name {
			return true
		}
	}
	return false
}

// DescriptionRequest datos para cargar la descripción de un servicio.
type DescriptionRequest struct {
	Service  Operation
	Endpoint string
	HTTP     *http.Client
}

// DescriptionSource estrategia para obtener la descripción de un servicio.
// Las fuentes se prueban en orden hasta que una responde.
type DescriptionSource interface {
	Name() string
	Load(ctx context.Context, req DescriptionRequest) (*ServiceDescription, error)
}

// ── Fuente live: <endpoint>?wsdl ──────────────────────────────────────────────

// LiveSource descarga el WSDL publicado por el propio servicio.
type LiveSource struct{}

// Name implementa DescriptionSource.
func (LiveSource) Name() string { return SourceLive }

// Load implementa DescriptionSource.
func (LiveSource) Load(ctx context.Context, req DescriptionRequest) (*ServiceDescription, error) {
	if req.HTTP == nil {
		return nil, fmt.Errorf("sifen: cliente HTTP no configurado")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Endpoint+"?wsdl", nil)
	if err != nil {
		return nil, fmt.Errorf("sifen: crear request wsdl: %w", err)
	}
	resp, err := req.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sifen: descargar wsdl: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sifen: leer wsdl: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sifen: wsdl HTTP %d", resp.StatusCode)
	}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: content-type %s", errNotDescription, resp.Header.Get("Content-Type"))
	}
	desc, err := parseDescription(body)
	if err != nil {
		return nil, err
	}
	desc.Service = req.Service
	desc.Source = SourceLive
	if desc.Endpoint == "" {
		desc.Endpoint = req.Endpoint
	}
	return desc, nil
}

// ── Fuente estática: WSDL embebido ────────────────────────────────────────────

// StaticSource usa el WSDL empaquetado con el binario, apuntando al endpoint configurado.
type StaticSource struct{}

// Name implementa DescriptionSource.
func (StaticSource) Name() string { return SourceStatic }

// Load implementa DescriptionSource.
func (StaticSource) Load(_ context.Context, req DescriptionRequest) (*ServiceDescription, error) {
	data, err := staticDescriptions.ReadFile("wsdl/" + string(req.Service) + ".wsdl")
	if err != nil {
		return nil, fmt.Errorf("sifen: wsdl estático para %s: %w", req.Service, err)
	}
	desc, err := parseDescription(data)
	if err != nil {
		return nil, err
	}
	desc.Service = req.Service
	desc.Source = SourceStatic
	desc.Endpoint = req.Endpoint
	return desc, nil
}

// parseDescription valida la raíz definitions y extrae operaciones y dirección.
// Si el XML no se puede leer, se aplica la heurística de página HTML/login.
func parseDescription(data []byte) (*ServiceDescription, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		if looksLikeLoginPage(data) {
			return nil, fmt.Errorf("%w: página HTML", errNotDescription)
		}
		return nil, fmt.Errorf("%w: %v", errNotDescription, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return nil, fmt.Errorf("%w: raíz inesperada", errNotDescription)
	}

	desc := &ServiceDescription{}
	for _, op := range root.FindElements("./portType/operation") {
		if name := op.SelectAttrValue("name", ""); name != "" {
			desc.Operations = append(desc.Operations, name)
		}
	}
	if len(desc.Operations) == 0 {
		return nil, fmt.Errorf("%w: sin operaciones", errNotDescription)
	}
	if addr := root.FindElement("./service/port/address"); addr != nil {
		desc.Endpoint = addr.SelectAttrValue("location", "")
	}
	return desc, nil
}

func isHTMLContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "html")
}

// looksLikeLoginPage heurística de respaldo: SIFEN devuelve una página de login
// cuando rechaza el certificado cliente.
func looksLikeLoginPage(body []byte) bool {
	head := bytes.ToLower(body)
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("login"))
}

// looksLikeSOAP indica si el cuerpo trae un envelope SOAP (p. ej. un Fault en un 500).
func looksLikeSOAP(body []byte) bool {
	return bytes.Contains(body, []byte(":Envelope")) || bytes.Contains(body, []byte("<Envelope"))
}

// ── Resolver con caché ────────────────────────────────────────────────────────

type cachedDescription struct {
	desc    *ServiceDescription
	expires time.Time
}

// DescriptionPolicy límites del resolver de descripciones.
type DescriptionPolicy struct {
	TTL           time.Duration // vigencia de una descripción live
	FallbackTTL   time.Duration // vigencia de una descripción de respaldo
	SourceTimeout time.Duration // tope por fuente; 0 = solo el contexto del llamador
}

// DescriptionResolver prueba las fuentes en orden, cachea lo que obtiene
// (live durante TTL, respaldo durante FallbackTTL) y deduplica cargas
// concurrentes del mismo servicio.
type DescriptionResolver struct {
	sources []DescriptionSource
	policy  DescriptionPolicy
	now     func() time.Time
	log     zerolog.Logger
	metrics *Metrics

	mu    sync.Mutex
	cache map[Operation]cachedDescription
	group singleflight.Group
}

// NewDescriptionResolver crea el resolver. Sin fuentes usa live → static.
func NewDescriptionResolver(policy DescriptionPolicy, log zerolog.Logger, metrics *Metrics, sources ...DescriptionSource) *DescriptionResolver {
	if len(sources) == 0 {
		sources = []DescriptionSource{LiveSource{}, StaticSource{}}
	}
	return &DescriptionResolver{
		sources: sources,
		policy:  policy,
		now:     time.Now,
		log:     log,
		metrics: metrics,
		cache:   make(map[Operation]cachedDescription),
	}
}

// Resolve devuelve la descripción del servicio y registra qué fuente la sirvió.
func (r *DescriptionResolver) Resolve(ctx context.Context, req DescriptionRequest) (*ServiceDescription, error) {
	if desc := r.cached(req.Service); desc != nil {
		r.observe(desc, true)
		return desc, nil
	}

	v, err, _ := r.group.Do(string(req.Service), func() (any, error) {
		if desc := r.cached(req.Service); desc != nil {
			return desc, nil
		}
		return r.load(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	desc := v.(*ServiceDescription)
	r.observe(desc, false)
	return desc, nil
}

// Invalidate descarta la descripción cacheada de un servicio.
func (r *DescriptionResolver) Invalidate(service Operation) {
	r.mu.Lock()
	delete(r.cache, service)
	r.mu.Unlock()
}

func (r *DescriptionResolver) load(ctx context.Context, req DescriptionRequest) (*ServiceDescription, error) {
	var errs []error
	for _, src := range r.sources {
		desc, err := r.loadFrom(ctx, src, req)
		if err != nil {
			r.log.Warn().Err(err).
				Str("servicio", string(req.Service)).
				Str("fuente", src.Name()).
				Msg("descripción de servicio no disponible, probando siguiente fuente")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		desc.LoadedAt = r.now()
		ttl := r.policy.FallbackTTL
		if desc.Source == SourceLive {
			ttl = r.policy.TTL
		}
		if ttl > 0 {
			r.mu.Lock()
			r.cache[req.Service] = cachedDescription{desc: desc, expires: desc.LoadedAt.Add(ttl)}
			r.mu.Unlock()
		}
		return desc, nil
	}
	return nil, fmt.Errorf("sifen: ninguna descripción disponible para %s: %w", req.Service, errors.Join(errs...))
}

// loadFrom consulta una fuente con su propio tope de tiempo, para que una
// fuente colgada no consuma la ronda completa.
func (r *DescriptionResolver) loadFrom(ctx context.Context, src DescriptionSource, req DescriptionRequest) (*ServiceDescription, error) {
	if r.policy.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.SourceTimeout)
		defer cancel()
	}
	return src.Load(ctx, req)
}

func (r *DescriptionResolver) cached(service Operation) *ServiceDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[service]
	if !ok {
		return nil
	}
	if r.now().After(entry.expires) {
		delete(r.cache, service)
		return nil
	}
	return entry.desc
}

func (r *DescriptionResolver) observe(desc *ServiceDescription, fromCache bool) {
	r.metrics.IncDescriptionSource(desc.Service, desc.Source)
	r.log.Debug().
		Str("servicio", string(desc.Service)).
		Str("fuente", desc.Source).
		Str("endpoint", desc.Endpoint).
		Bool("cache", fromCache).
		Msg("descripción de servicio resuelta")
}
