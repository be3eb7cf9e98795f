package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jhoicas/sifen-api/internal/application/eventlog"
	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	domainsifen "github.com/jhoicas/sifen-api/internal/domain/sifen"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// Operaciones (etiqueta de métricas).
const (
	opSubmit    = "submit"
	opQuery     = "query"
	opCancel    = "cancel"
	opVoid      = "void"
	opVoidRange = "void_range"
	opPayload   = "payload"
	opCreate    = "create"
)

const (
	resultNoop  = "noop"
	resultError = "error"
	resultOK    = "ok"
)

// Result resultado de una operación del ciclo de vida.
type Result struct {
	Document *entity.Document
	Remote   *infrasifen.RemoteResult // nil si no hubo llamada o falló
	Outcome  domainsifen.Outcome
	Changed  bool  // el estado cambió
	EventErr error // solo inutilización: fallo del envío best-effort del evento
}

// Lifecycle orquesta el ciclo de vida del DE frente a SIFEN:
//
//	GENERATED → SENT → ACCEPTED | REJECTED | CANCELLED | VOIDED
//	ERROR (credencial rechazada) → reenvío
//
// Las operaciones sobre un mismo documento se serializan; el cambio de estado
// y su evento se escriben en la misma transacción.
type Lifecycle struct {
	docs    repository.DocumentRepository
	tx      DocumentTxRunner
	events  *eventlog.Log
	remote  RemoteClient
	locks   *keyedMutex
	log     zerolog.Logger
	metrics *Metrics
}

// LifecycleOption configura el Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLogger inyecta el logger.
func WithLogger(l zerolog.Logger) LifecycleOption {
	return func(lc *Lifecycle) { lc.log = l }
}

// WithMetrics inyecta las métricas.
func WithMetrics(m *Metrics) LifecycleOption {
	return func(lc *Lifecycle) { lc.metrics = m }
}

// NewLifecycle construye el orquestador.
func NewLifecycle(
	docs repository.DocumentRepository,
	tx DocumentTxRunner,
	events *eventlog.Log,
	remote RemoteClient,
	opts ...LifecycleOption,
) *Lifecycle {
	l := &Lifecycle{
		docs:   docs,
		tx:     tx,
		events: events,
		remote: remote,
		locks:  newKeyedMutex(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ── Consultas ────────────────────────────────────────────────────────────────

// Get devuelve el documento.
func (l *Lifecycle) Get(ctx context.Context, id string) (*entity.Document, error) {
	return l.docs.GetByID(ctx, id)
}

// History devuelve el historial ordenado del documento.
func (l *Lifecycle) History(ctx context.Context, id string) ([]*entity.DocumentEvent, error) {
	if _, err := l.docs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return l.events.History(ctx, id)
}

// ── Envío y consulta ─────────────────────────────────────────────────────────

// Submit envía el XML firmado. Un documento final o sin payload se rechaza
// antes de la red con un único evento submit-rejected. Desde SENT se puede
// reenviar: SIFEN solo deja un DE en SENT con respuestas transitorias o no
// reconocidas, es decir sin haberlo procesado.
func (l *Lifecycle) Submit(ctx context.Context, id string) (*Result, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	doc, err := l.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log := l.docLogger(doc)

	var blocked error
	switch {
	case doc.State.IsTerminal():
		blocked = fmt.Errorf("enviar documento en estado %s: %w", doc.State, domain.ErrTerminalState)
	case !doc.HasPayload():
		blocked = fmt.Errorf("enviar documento: %w", domain.ErrPayloadRequired)
	}
	if blocked != nil {
		log.Warn().Err(blocked).Msg("envío rechazado antes de llamar a SIFEN")
		return l.noop(ctx, doc, opSubmit, entity.EventSubmitRejected, blocked)
	}

	if err := l.events.Record(ctx, doc.ID, entity.EventSubmit, "envío del DE a SIFEN", map[string]string{
		"cdc":    doc.ControlCode,
		"estado": string(doc.State),
	}); err != nil {
		return nil, err
	}

	res, callErr := l.remote.SubmitDocument(ctx, doc.Payload)
	if callErr != nil {
		toError := infrasifen.KindOf(callErr) == infrasifen.KindAuthentication
		return l.remoteFailure(ctx, doc, opSubmit, callErr, toError)
	}

	from := doc.State
	doc.State = entity.StateSent
	out := domainsifen.Interpret(res.Code, res.Message)
	return l.applyResponse(ctx, doc, from, res, out, entity.EventSubmitResponse, opSubmit)
}

// Query consulta el estado del DE por CDC. Solo transiciona con códigos
// definitivos y nunca saca a un documento de un estado final.
func (l *Lifecycle) Query(ctx context.Context, id string) (*Result, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	doc, err := l.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := l.events.Record(ctx, doc.ID, entity.EventQuery, "consulta de estado en SIFEN", map[string]string{
		"cdc":    doc.ControlCode,
		"estado": string(doc.State),
	}); err != nil {
		return nil, err
	}

	res, callErr := l.remote.QueryStatus(ctx, doc.ControlCode)
	if callErr != nil {
		return l.remoteFailure(ctx, doc, opQuery, callErr, false)
	}
	out := domainsifen.Interpret(res.Code, res.Message)
	return l.applyResponse(ctx, doc, doc.State, res, out, entity.EventQueryResponse, opQuery)
}

// ── Eventos del emisor ───────────────────────────────────────────────────────

// Cancel envía el evento de cancelación. Solo es legal desde ACCEPTED; con
// el evento registrado (0600) el documento pasa a CANCELLED.
func (l *Lifecycle) Cancel(ctx context.Context, id string, eventPayload []byte) (*Result, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	doc, err := l.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case doc.State != entity.StateAccepted && doc.State.IsTerminal():
		return l.noop(ctx, doc, opCancel, entity.EventCancel,
			fmt.Errorf("cancelar documento en estado %s: %w", doc.State, domain.ErrTerminalState))
	case doc.State != entity.StateAccepted:
		return l.noop(ctx, doc, opCancel, entity.EventCancel,
			fmt.Errorf("cancelar documento en estado %s: %w", doc.State, domain.ErrInvalidTransition))
	case len(eventPayload) == 0:
		return l.noop(ctx, doc, opCancel, entity.EventCancel,
			fmt.Errorf("cancelar documento: %w", domain.ErrPayloadRequired))
	}

	if err := l.events.Record(ctx, doc.ID, entity.EventCancel, "envío del evento de cancelación", map[string]string{
		"cdc": doc.ControlCode,
	}); err != nil {
		return nil, err
	}

	res, callErr := l.remote.SubmitEvent(ctx, eventPayload)
	if callErr != nil {
		return l.remoteFailure(ctx, doc, opCancel, callErr, false)
	}

	out := domainsifen.Interpret(res.Code, res.Message)
	if pkgsifen.IsEventAccepted(res.Code) {
		out.Target = entity.StateCancelled
		out.Unrecognized = false
		out.Observation = "cancelado: " + res.Message
	}
	return l.applyResponse(ctx, doc, doc.State, res, out, entity.EventCancelResponse, opCancel)
}

// Void inutiliza el documento de inmediato, sin esperar a SIFEN. Si hay
// payload del evento se envía después y su respuesta solo queda en el historial.
func (l *Lifecycle) Void(ctx context.Context, id, operator string, eventPayload []byte) (*Result, error) {
	r, err := l.void(ctx, id, operator)
	if err != nil || len(eventPayload) == 0 {
		return r, err
	}
	res, callErr := l.remote.SubmitEvent(ctx, eventPayload)
	r.Remote, r.EventErr = res, callErr
	l.recordEventAnswer(ctx, r.Document, res, callErr)
	return r, nil
}

func (l *Lifecycle) void(ctx context.Context, id, operator string) (*Result, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	doc, err := l.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if operator == "" {
		return l.noop(ctx, doc, opVoid, entity.EventVoid,
			fmt.Errorf("inutilizar requiere operador: %w", domain.ErrForbidden))
	}
	if doc.State.IsTerminal() {
		return l.noop(ctx, doc, opVoid, entity.EventVoid,
			fmt.Errorf("inutilizar documento en estado %s: %w", doc.State, domain.ErrTerminalState))
	}

	from := doc.State
	doc.State = entity.StateVoided
	doc.Observation = "inutilizado por " + operator
	doc.UpdatedAt = l.events.Now()
	ev := l.event(doc, entity.EventVoid, "documento inutilizado", map[string]string{
		"operador":     operator,
		"estado_desde": string(from),
		"estado_hasta": string(doc.State),
	})
	if err := l.commit(context.WithoutCancel(ctx), from, doc, ev); err != nil {
		return nil, err
	}
	l.metrics.incTransition(from, doc.State)
	l.metrics.incOperation(opVoid, resultOK)
	l.docLogger(doc).Info().Str("desde", string(from)).Str("operador", operator).Msg("documento inutilizado")
	return &Result{Document: doc, Changed: true}, nil
}

// VoidRangeInput rango de numeración a inutilizar.
type VoidRangeInput struct {
	IssuerID      string
	Establishment string
	Point         string
	From          string // número inicial, 7 dígitos
	To            string // número final, 7 dígitos
	Operator      string
}

// VoidRangeResult documentos inutilizados y omitidos (ya finales).
type VoidRangeResult struct {
	Voided   []*entity.Document
	Skipped  []*entity.Document
	Remote   *infrasifen.RemoteResult
	EventErr error
}

// VoidRange inutiliza los documentos no finales del rango y envía un único
// evento de inutilización por el rango completo.
func (l *Lifecycle) VoidRange(ctx context.Context, in VoidRangeInput, eventPayload []byte) (*VoidRangeResult, error) {
	if err := validateRange(in); err != nil {
		return nil, err
	}
	docs, err := l.docs.ListByRange(ctx, in.IssuerID, in.Establishment, in.Point, in.From, in.To)
	if err != nil {
		return nil, fmt.Errorf("inutilizar rango: %w", err)
	}

	out := &VoidRangeResult{}
	for _, d := range docs {
		r, err := l.void(ctx, d.ID, in.Operator)
		switch {
		case errors.Is(err, domain.ErrTerminalState) && r != nil:
			out.Skipped = append(out.Skipped, r.Document)
		case err != nil:
			return out, err
		default:
			out.Voided = append(out.Voided, r.Document)
		}
	}
	l.metrics.incOperation(opVoidRange, resultOK)

	if len(eventPayload) > 0 {
		out.Remote, out.EventErr = l.remote.SubmitEvent(ctx, eventPayload)
		for _, d := range out.Voided {
			l.recordEventAnswer(ctx, d, out.Remote, out.EventErr)
		}
	}
	l.log.Info().
		Str("establecimiento", in.Establishment).
		Str("punto", in.Point).
		Str("desde", in.From).
		Str("hasta", in.To).
		Int("inutilizados", len(out.Voided)).
		Int("omitidos", len(out.Skipped)).
		Msg("rango inutilizado")
	return out, nil
}

func validateRange(in VoidRangeInput) error {
	if in.IssuerID == "" || len(in.Establishment) != 3 || len(in.Point) != 3 {
		return fmt.Errorf("emisor, establecimiento y punto obligatorios: %w", domain.ErrInvalidInput)
	}
	from, errFrom := strconv.Atoi(in.From)
	to, errTo := strconv.Atoi(in.To)
	if len(in.From) != 7 || len(in.To) != 7 || errFrom != nil || errTo != nil || from > to {
		return fmt.Errorf("rango %q-%q inválido: %w", in.From, in.To, domain.ErrInvalidInput)
	}
	if in.Operator == "" {
		return fmt.Errorf("inutilizar requiere operador: %w", domain.ErrForbidden)
	}
	return nil
}

// ── Payload ──────────────────────────────────────────────────────────────────

// AttachPayload adjunta el XML firmado a un documento aún no enviado.
func (l *Lifecycle) AttachPayload(ctx context.Context, id string, payload []byte) (*Result, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload vacío: %w", domain.ErrInvalidInput)
	}
	unlock := l.locks.Lock(id)
	defer unlock()

	doc, err := l.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case doc.State.IsTerminal():
		return l.noop(ctx, doc, opPayload, entity.EventPayload,
			fmt.Errorf("adjuntar payload en estado %s: %w", doc.State, domain.ErrTerminalState))
	case doc.State == entity.StateSent:
		return l.noop(ctx, doc, opPayload, entity.EventPayload,
			fmt.Errorf("adjuntar payload a un documento enviado: %w", domain.ErrInvalidTransition))
	}

	doc.Payload = append([]byte(nil), payload...)
	doc.UpdatedAt = l.events.Now()
	ev := l.event(doc, entity.EventPayload, "XML firmado adjuntado", map[string]string{
		"bytes": strconv.Itoa(len(payload)),
	})
	if err := l.commit(ctx, doc.State, doc, ev); err != nil {
		return nil, err
	}
	l.metrics.incOperation(opPayload, resultOK)
	return &Result{Document: doc}, nil
}

// ── Internos ─────────────────────────────────────────────────────────────────

// register persiste un documento nuevo junto con su evento "created".
func (l *Lifecycle) register(ctx context.Context, doc *entity.Document) error {
	ev := l.event(doc, entity.EventCreated, "documento generado", map[string]string{
		"cdc":    doc.ControlCode,
		"estado": string(doc.State),
	})
	err := l.tx.RunDocument(ctx, func(docs repository.DocumentRepository, events repository.DocumentEventRepository) error {
		if err := docs.Create(ctx, doc); err != nil {
			return err
		}
		return l.events.Bind(events).Append(ctx, ev)
	})
	if err != nil {
		l.metrics.incOperation(opCreate, resultError)
		return err
	}
	l.metrics.incOperation(opCreate, resultOK)
	l.docLogger(doc).Info().Msg("documento generado")
	return nil
}

// applyResponse aplica la tabla de respuestas y persiste estado + evento.
func (l *Lifecycle) applyResponse(
	ctx context.Context,
	doc *entity.Document,
	from entity.DocumentState,
	res *infrasifen.RemoteResult,
	out domainsifen.Outcome,
	kind, op string,
) (*Result, error) {
	if out.HasTransition() && domainsifen.CanTransition(doc.State, out.Target) {
		doc.State = out.Target
	}
	changed := doc.State != from

	// Un documento final sin transición no se toca: solo queda el evento.
	var write *entity.Document
	if changed || !from.IsTerminal() {
		doc.Observation = out.Observation
		if res.ProcessedAt != nil {
			doc.ProcessedAt = res.ProcessedAt
		}
		doc.UpdatedAt = l.events.Now()
		write = doc
	}

	details := map[string]string{
		"codigo":       res.Code,
		"mensaje":      res.Message,
		"clase":        string(out.Class),
		"estado_desde": string(from),
		"estado_hasta": string(doc.State),
		"intentos":     strconv.Itoa(res.Attempts),
		"fuente":       res.Source,
	}
	if out.Transient {
		details["transitorio"] = "true"
	}
	if out.Unrecognized {
		details["no_reconocido"] = "true"
	}
	ev := l.event(doc, kind, out.Observation, details)
	if err := l.commit(context.WithoutCancel(ctx), from, write, ev); err != nil {
		return nil, err
	}

	if changed {
		l.metrics.incTransition(from, doc.State)
	}
	l.metrics.incOperation(op, string(out.Class))
	l.docLogger(doc).Info().
		Str("operacion", op).
		Str("codigo", res.Code).
		Str("desde", string(from)).
		Bool("transitorio", out.Transient).
		Bool("no_reconocido", out.Unrecognized).
		Msg("respuesta SIFEN aplicada")
	return &Result{Document: doc, Remote: res, Outcome: out, Changed: changed}, nil
}

// remoteFailure registra el evento de error. Con toError el documento pasa a
// ERROR (credencial rechazada); en otro caso el estado no cambia.
func (l *Lifecycle) remoteFailure(ctx context.Context, doc *entity.Document, op string, callErr error, toError bool) (*Result, error) {
	from := doc.State
	var write *entity.Document
	if toError && !from.IsTerminal() && from != entity.StateError {
		doc.State = entity.StateError
		doc.Observation = "credencial rechazada por SIFEN: " + callErr.Error()
		doc.UpdatedAt = l.events.Now()
		write = doc
	}

	details := map[string]string{
		"operacion":    op,
		"tipo_error":   string(infrasifen.KindOf(callErr)),
		"error":        callErr.Error(),
		"estado_desde": string(from),
		"estado_hasta": string(doc.State),
	}
	var re *infrasifen.RemoteError
	if errors.As(callErr, &re) && re.Attempts > 0 {
		details["intentos"] = strconv.Itoa(re.Attempts)
	}
	ev := l.event(doc, entity.EventError, "falla al llamar a SIFEN", details)
	if err := l.commit(context.WithoutCancel(ctx), from, write, ev); err != nil {
		return nil, errors.Join(callErr, err)
	}

	if write != nil {
		l.metrics.incTransition(from, doc.State)
	}
	l.metrics.incOperation(op, resultError)
	l.docLogger(doc).Error().Err(callErr).Str("operacion", op).Msg("llamada a SIFEN fallida")
	return &Result{Document: doc, Changed: write != nil}, callErr
}

// noop registra una operación rechazada sin tocar el estado.
func (l *Lifecycle) noop(ctx context.Context, doc *entity.Document, op, kind string, reason error) (*Result, error) {
	ev := l.event(doc, kind, reason.Error(), map[string]string{
		"estado":    string(doc.State),
		"resultado": "sin-cambio",
	})
	if err := l.commit(ctx, doc.State, nil, ev); err != nil {
		return nil, errors.Join(reason, err)
	}
	l.metrics.incOperation(op, resultNoop)
	return &Result{Document: doc}, reason
}

// recordEventAnswer deja en el historial la respuesta a un evento de inutilización.
func (l *Lifecycle) recordEventAnswer(ctx context.Context, doc *entity.Document, res *infrasifen.RemoteResult, callErr error) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if callErr != nil {
		err = l.events.Record(ctx, doc.ID, entity.EventError, "falla al enviar el evento de inutilización", map[string]string{
			"operacion":  opVoid,
			"tipo_error": string(infrasifen.KindOf(callErr)),
			"error":      callErr.Error(),
		})
	} else {
		err = l.events.Record(ctx, doc.ID, entity.EventVoidResponse, "respuesta al evento de inutilización", map[string]string{
			"codigo":     res.Code,
			"mensaje":    res.Message,
			"confirmado": strconv.FormatBool(pkgsifen.IsEventAccepted(res.Code)),
		})
	}
	if err != nil {
		l.docLogger(doc).Error().Err(err).Msg("no se pudo registrar la respuesta del evento")
	}
}

// commit escribe doc (si no es nil) y el evento en una transacción. El
// estado persistido debe seguir siendo snapshot.
func (l *Lifecycle) commit(ctx context.Context, snapshot entity.DocumentState, doc *entity.Document, ev *entity.DocumentEvent) error {
	return l.tx.RunDocument(ctx, func(docs repository.DocumentRepository, events repository.DocumentEventRepository) error {
		if doc != nil {
			cur, err := docs.GetByID(ctx, doc.ID)
			if err != nil {
				return err
			}
			if cur.State != snapshot {
				return fmt.Errorf("documento %s pasó de %s a %s: %w", doc.ID, snapshot, cur.State, domain.ErrConflict)
			}
			if err := docs.Update(ctx, doc); err != nil {
				return err
			}
		}
		return l.events.Bind(events).Append(ctx, ev)
	})
}

func (l *Lifecycle) event(doc *entity.Document, kind, description string, details map[string]string) *entity.DocumentEvent {
	return &entity.DocumentEvent{
		DocumentID:  doc.ID,
		Kind:        kind,
		Description: description,
		Details:     details,
	}
}

func (l *Lifecycle) docLogger(doc *entity.Document) *zerolog.Logger {
	lg := l.log.With().
		Str("documento", doc.ID).
		Str("cdc", doc.ControlCode).
		Str("estado", string(doc.State)).
		Logger()
	return &lg
}
