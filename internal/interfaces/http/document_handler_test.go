package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sifen-api/internal/application/auth"
	"github.com/jhoicas/sifen-api/internal/application/billing"
	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/application/eventlog"
	"github.com/jhoicas/sifen-api/internal/application/issuer"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/infrastructure/memory"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	apphttp "github.com/jhoicas/sifen-api/internal/interfaces/http"
)

// stubRemote responde siempre con el mismo código por operación.
type stubRemote struct {
	mu     sync.Mutex
	calls  int
	code   string
	submit error
}

func (s *stubRemote) result() *infrasifen.RemoteResult {
	return &infrasifen.RemoteResult{Code: s.code, Message: "respuesta " + s.code, Attempts: 1, Source: infrasifen.SourceLive, Success: true}
}

func (s *stubRemote) QueryStatus(context.Context, string) (*infrasifen.RemoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result(), nil
}

func (s *stubRemote) SubmitDocument(context.Context, []byte) (*infrasifen.RemoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.submit != nil {
		return nil, s.submit
	}
	return s.result(), nil
}

func (s *stubRemote) SubmitEvent(context.Context, []byte) (*infrasifen.RemoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &infrasifen.RemoteResult{Code: "0600", Message: "Evento registrado correctamente", Attempts: 1, Success: true}, nil
}

type apiFixture struct {
	app    *fiber.App
	remote *stubRemote
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	remote := &stubRemote{code: "0260"}
	reg := prometheus.NewRegistry()
	events := eventlog.New(store.Events(), nil)
	lc := billing.NewLifecycle(store.Documents(), memory.NewTxRunner(store), events, remote,
		billing.WithMetrics(billing.NewMetrics(reg)))
	authUC, err := auth.NewAuthUseCase(nil, auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: 5})
	require.NoError(t, err)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Lifecycle: lc,
		Create:    billing.NewCreateDocumentUseCase(store.Issuers(), store.Timbrados(), store.Documents(), lc),
		Payloads:  billing.NewPayloadService(lc, store.Issuers(), store.Timbrados(), infrasifen.NewXMLBuilderService(), nil, zerolog.Nop()),
		IssuerUC:  issuer.NewUseCase(store.Issuers(), store.Timbrados()),
		AuthUC:    authUC,
		JWTSecret: testJWTSecret,
		Gatherer:  reg,
		Log:       zerolog.Nop(),
	})
	return &apiFixture{app: app, remote: remote}
}

func (f *apiFixture) call(t *testing.T, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if _, isJSON := body.([]byte); body != nil && !isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

// setupDocument crea emisor, timbrado y un documento; devuelve el ID del documento.
func (f *apiFixture) setupDocument(t *testing.T) string {
	t.Helper()
	resp, body := f.call(t, http.MethodPost, "/api/issuers", "admin", dto.CreateIssuerRequest{Name: "EMPRESA S.A.", RUC: "80069563"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var iss dto.IssuerResponse
	require.NoError(t, json.Unmarshal(body, &iss))

	resp, body = f.call(t, http.MethodPost, "/api/issuers/"+iss.ID+"/timbrados", "admin", dto.CreateTimbradoRequest{
		Number: "12345678", Establishment: "001", Point: "001", ValidFrom: "2024-01-01", ValidTo: "2030-12-31",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = f.call(t, http.MethodPost, "/api/documents", "operador", map[string]any{
		"issuer_id": iss.ID, "tipo_documento": 1, "establecimiento": "001", "punto": "001",
		"numero": "0000001", "fecha_emision": "2024-03-12", "total": "110000", "iva": "10000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Len(t, doc.ControlCode, 44)
	assert.Equal(t, string(entity.StateGenerated), doc.State)
	return doc.ID
}

func TestDocuments_FlujoCompleto(t *testing.T) {
	f := newAPI(t)
	id := f.setupDocument(t)

	// Sin payload el envío se rechaza sin llamar a SIFEN
	resp, body := f.call(t, http.MethodPost, "/api/documents/"+id+"/submit", "operador", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "PAYLOAD_REQUIRED")
	assert.Zero(t, f.remote.calls)

	resp, body = f.call(t, http.MethodPost, "/api/documents/"+id+"/build", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.call(t, http.MethodPost, "/api/documents/"+id+"/submit", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var op dto.OperationResponse
	require.NoError(t, json.Unmarshal(body, &op))
	assert.Equal(t, string(entity.StateAccepted), op.Document.State)
	assert.True(t, op.Changed)
	require.NotNil(t, op.Remote)
	assert.Equal(t, "0260", op.Remote.Code)

	resp, body = f.call(t, http.MethodPost, "/api/documents/"+id+"/cancel", "operador", dto.EventReasonRequest{Reason: "Error en el monto"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &op))
	assert.Equal(t, string(entity.StateCancelled), op.Document.State)

	resp, body = f.call(t, http.MethodGet, "/api/documents/"+id+"/events", "consulta", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []dto.EventResponse
	require.NoError(t, json.Unmarshal(body, &events))
	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{
		entity.EventCreated, entity.EventSubmitRejected, entity.EventPayload,
		entity.EventSubmit, entity.EventSubmitResponse,
		entity.EventCancel, entity.EventCancelResponse,
	}, kinds)
}

func TestDocuments_PayloadCrudo(t *testing.T) {
	f := newAPI(t)
	id := f.setupDocument(t)

	resp, _ := f.call(t, http.MethodPut, "/api/documents/"+id+"/payload", "operador", []byte("<rDE/>"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.call(t, http.MethodGet, "/api/documents/"+id, "consulta", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.True(t, doc.HasPayload)
}

func TestDocuments_InutilizarRequiereRol(t *testing.T) {
	f := newAPI(t)
	id := f.setupDocument(t)

	resp, _ := f.call(t, http.MethodPost, "/api/documents/"+id+"/void", "consulta", dto.EventReasonRequest{Reason: "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := f.call(t, http.MethodPost, "/api/documents/"+id+"/void", "operador", dto.EventReasonRequest{Reason: "salto"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var op dto.OperationResponse
	require.NoError(t, json.Unmarshal(body, &op))
	assert.Equal(t, string(entity.StateVoided), op.Document.State)
	assert.Equal(t, "inutilizado por "+testOperator, op.Document.Observation)

	// Segunda inutilización: estado final
	resp, body = f.call(t, http.MethodPost, "/api/documents/"+id+"/void", "operador", dto.EventReasonRequest{Reason: "salto"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "TERMINAL_STATE")
}

func TestDocuments_AutenticacionSifenPasaAError(t *testing.T) {
	f := newAPI(t)
	id := f.setupDocument(t)
	f.remote.submit = &infrasifen.RemoteError{Kind: infrasifen.KindAuthentication, Attempts: 1, Err: errors.New("403")}

	resp, _ := f.call(t, http.MethodPost, "/api/documents/"+id+"/build", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := f.call(t, http.MethodPost, "/api/documents/"+id+"/submit", "operador", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "SIFEN_AUTHENTICATION")

	_, body = f.call(t, http.MethodGet, "/api/documents/"+id, "consulta", nil)
	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, string(entity.StateError), doc.State)
}

func TestDocuments_ErroresDeEntrada(t *testing.T) {
	f := newAPI(t)

	resp, _ := f.call(t, http.MethodGet, "/api/documents/no-existe", "consulta", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := f.call(t, http.MethodPost, "/api/documents", "operador", map[string]any{"issuer_id": "x", "fecha_emision": "12/03/2024"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "VALIDATION")

	resp, _ = f.call(t, http.MethodGet, "/api/documents/no-existe", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthYMetrics(t *testing.T) {
	f := newAPI(t)
	f.setupDocument(t)

	resp, _ := f.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "sifen_lifecycle_operations_total"))
}
