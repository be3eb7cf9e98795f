package sifen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

const testCDC = "01800695631001001000000120240312123456784005"

// ── WS SIFEN falso ────────────────────────────────────────────────────────────

type fakeAuthority struct {
	srv        *httptest.Server
	wsdlHits   atomic.Int32
	postHits   atomic.Int32
	wsdl       func(w http.ResponseWriter, r *http.Request)
	post       func(n int32, w http.ResponseWriter, r *http.Request)
	lastBodies atomic.Value
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()
	f := &fakeAuthority{}
	f.wsdl = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, liveWSDL(f.srv.URL+r.URL.Path, wsdlOperationFor(r.URL.Path)))
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			f.wsdlHits.Add(1)
			f.wsdl(w, r)
			return
		}
		n := f.postHits.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastBodies.Store(string(body))
		f.post(n, w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func wsdlOperationFor(path string) string {
	switch path {
	case pathRecepcion:
		return "rEnviDe"
	case pathEventos:
		return "rEnviEventoDe"
	}
	return "rEnviConsDe"
}

func liveWSDL(location, op string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<wsdl:definitions xmlns:wsdl="http://schemas.xmlsoap.org/wsdl/" xmlns:soap12="http://schemas.xmlsoap.org/wsdl/soap12/">
  <wsdl:portType name="ws"><wsdl:operation name="` + op + `"/></wsdl:portType>
  <wsdl:service name="svc"><wsdl:port name="p"><soap12:address location="` + location + `"/></wsdl:port></wsdl:service>
</wsdl:definitions>`
}

func soapResult(code, msg string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <ns2:rEnviConsDeResponse xmlns:ns2="http://ekuatia.set.gov.py/sifen/xsd">
      <ns2:dFecProc>2024-03-12T10:31:00-03:00</ns2:dFecProc>
      <ns2:dCodRes>` + code + `</ns2:dCodRes>
      <ns2:dMsgRes>` + msg + `</ns2:dMsgRes>
    </ns2:rEnviConsDeResponse>
  </env:Body>
</env:Envelope>`
}

func soapFaultBody(code, reason string) string {
	return `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body><env:Fault>
<env:Code><env:Value>env:` + code + `</env:Value></env:Code>
<env:Reason><env:Text xml:lang="es">` + reason + `</env:Text></env:Reason>
</env:Fault></env:Body></env:Envelope>`
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func testConfig(baseURL string) ClientConfig {
	return ClientConfig{
		Env:         pkgsifen.EnvTest,
		BaseURL:     baseURL,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}
}

// ── Fakes de certificado ──────────────────────────────────────────────────────

type fakeCertProvider struct {
	cert *pkgsifen.Certificate
	err  error
}

func (f fakeCertProvider) LoadCertificate(context.Context) (*pkgsifen.Certificate, error) {
	return f.cert, f.err
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestQueryStatus_Aprobado(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0422", res.Code)
	assert.Equal(t, "CDC encontrado", res.Message)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, SourceLive, res.Source)
	require.NotNil(t, res.ProcessedAt)
	assert.Equal(t, 2024, res.ProcessedAt.Year())
	assert.NoError(t, res.Err())

	sent, _ := f.lastBodies.Load().(string)
	assert.Contains(t, sent, "<dCDC>"+testCDC+"</dCDC>")
	assert.Contains(t, sent, "rEnviConsDeRequest")
}

func TestCall_ReintentaHastaMaxIntentos(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "upstream down")
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)
	assert.Equal(t, int32(3), f.postHits.Load())
}

func TestCall_PrimerIntentoFallaSegundoResponde(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeXML(w, http.StatusOK, soapResult("0260", "Autorización del DE satisfactoria"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.SubmitDocument(context.Background(), []byte(`<rDE><DE Id="`+testCDC+`"/></rDE>`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), f.postHits.Load())
}

func TestCall_RechazoNoSeReintenta(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0160", "XML mal formado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.SubmitDocument(context.Background(), []byte(`<rDE/>`))
	require.NoError(t, err, "un rechazo bien formado no es un error de transporte")
	assert.False(t, res.Success)
	assert.Equal(t, "0160", res.Code)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err(), ErrRemoteRejection)
}

func TestCall_TransitorioBienFormadoNoSeReintenta(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0502", "Tiempo agotado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err(), ErrTransientRemote)
}

func TestCall_HTMLEsErrorDeAutenticacion(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Login</body></html>")
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), f.postHits.Load(), "la autenticación rechazada no se reintenta")
}

func TestCall_LoginSinContentTypeEsAutenticacion(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		fmt.Fprint(w, "<!DOCTYPE html><html><form action='login'>")
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestCall_HTTP403EsAutenticacion(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), f.postHits.Load())
}

func TestCall_SOAPFault(t *testing.T) {
	t.Run("Receiver se reintenta", func(t *testing.T) {
		f := newFakeAuthority(t)
		f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
			writeXML(w, http.StatusInternalServerError, soapFaultBody("Receiver", "Servicio no disponible"))
		}
		c := NewSOAPClient(testConfig(f.srv.URL))
		_, err := c.QueryStatus(context.Background(), testCDC)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Equal(t, int32(3), f.postHits.Load())
	})
	t.Run("Sender es rechazo", func(t *testing.T) {
		f := newFakeAuthority(t)
		f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
			writeXML(w, http.StatusInternalServerError, soapFaultBody("Sender", "Mensaje inválido"))
		}
		c := NewSOAPClient(testConfig(f.srv.URL))
		_, err := c.QueryStatus(context.Background(), testCDC)
		assert.ErrorIs(t, err, ErrRemoteRejection)
		assert.Equal(t, int32(1), f.postHits.Load())
	})
}

func TestCall_XMLMalFormadoSeReintenta(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			writeXML(w, http.StatusOK, "<env:Envelope><sin-cerrar>")
			return
		}
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
}

func TestDescription_FallbackAEstatico(t *testing.T) {
	f := newFakeAuthority(t)
	f.wsdl = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>login</html>")
	}
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := NewSOAPClient(testConfig(f.srv.URL), WithMetrics(m), WithLogger(zerolog.Nop()))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, res.Source)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DescriptionSource.WithLabelValues(string(OpQuery), SourceStatic)))
}

func TestDescription_CacheLive(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	for i := 0; i < 3; i++ {
		_, err := c.QueryStatus(context.Background(), testCDC)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.wsdlHits.Load(), "el WSDL live se cachea")
}

func TestStaticSource_ReescribeEndpoint(t *testing.T) {
	for _, op := range []Operation{OpQuery, OpSubmit, OpEvent} {
		desc, err := StaticSource{}.Load(context.Background(), DescriptionRequest{Service: op, Endpoint: "https://local/ws"})
		require.NoError(t, err, op)
		assert.Equal(t, "https://local/ws", desc.Endpoint)
		assert.True(t, desc.HasOperation(wsdlOperations[op]), op)
	}
}

func TestCredential_ProduccionSinCertificado(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "ok"))
	}
	cfg := testConfig(f.srv.URL)
	cfg.Env = pkgsifen.EnvProd

	t.Run("sin proveedor", func(t *testing.T) {
		c := NewSOAPClient(cfg)
		_, err := c.QueryStatus(context.Background(), testCDC)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})
	t.Run("proveedor sin archivo", func(t *testing.T) {
		c := NewSOAPClient(cfg, WithCertificateProvider(fakeCertProvider{err: pkgsifen.ErrCertificateUnavailable}))
		_, err := c.QueryStatus(context.Background(), testCDC)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})
	t.Run("certificado vencido", func(t *testing.T) {
		c := NewSOAPClient(cfg, WithCertificateProvider(fakeCertProvider{err: pkgsifen.ErrCertificateExpired}))
		_, err := c.QueryStatus(context.Background(), testCDC)
		assert.ErrorIs(t, err, ErrCertificateExpired)
		assert.Equal(t, KindCertificateExpired, KindOf(err))
	})

	assert.Zero(t, f.postHits.Load(), "no debe haber tráfico de red sin credencial")
	assert.Zero(t, f.wsdlHits.Load())
}

func TestCredential_PruebasSinCertificadoContinua(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "ok"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL), WithCertificateProvider(fakeCertProvider{err: pkgsifen.ErrCertificateUnavailable}))

	_, err := c.QueryStatus(context.Background(), testCDC)
	assert.NoError(t, err)
}

func TestQueryStatus_CDCInvalidoSinRed(t *testing.T) {
	f := newFakeAuthority(t)
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), "123")
	assert.ErrorIs(t, err, ErrRemoteRejection)
	assert.Zero(t, f.postHits.Load())
}

func TestParseResponse_ISO88591(t *testing.T) {
	body := `<?xml version="1.0" encoding="ISO-8859-1"?>` + soapResult("0260", "Autorización del DE satisfactoria")[len(`<?xml version="1.0" encoding="UTF-8"?>`):]
	encoded, err := charmap.ISO8859_1.NewEncoder().String(body)
	require.NoError(t, err)

	resp, err := parseResponse([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, "0260", resp.Code)
	assert.Equal(t, "Autorización del DE satisfactoria", resp.Message)
}

func TestSubmitEvent_ExitoSoloCon0600(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0600", "Evento registrado correctamente"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.SubmitEvent(context.Background(), []byte(`<rGesEve><rEve Id="1"/></rGesEve>`))
	require.NoError(t, err)
	assert.True(t, res.Success)

	sent, _ := f.lastBodies.Load().(string)
	assert.Contains(t, sent, "<dEvReg>")
	assert.Contains(t, sent, "<rGesEve>")
}

func TestSubmitDocument_PayloadInvalido(t *testing.T) {
	f := newFakeAuthority(t)
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.SubmitDocument(context.Background(), []byte("no es xml <"))
	assert.ErrorIs(t, err, ErrRemoteRejection)
	assert.Zero(t, f.postHits.Load())
}

func TestCall_RondaAcotadaPorDeadline(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	cfg := testConfig(f.srv.URL)
	cfg.MaxAttempts = 50
	cfg.BackoffBase = 20 * time.Millisecond
	cfg.MaxRoundElapsed = 100 * time.Millisecond
	c := NewSOAPClient(cfg)

	start := time.Now()
	_, err := c.QueryStatus(context.Background(), testCDC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Less(t, f.postHits.Load(), int32(50))
}

func TestCall_HTML5xxEsTransporteYSeReintenta(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "<html><body><h1>502 Bad Gateway</h1></body></html>")
			return
		}
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), f.postHits.Load())
}

func TestCall_HTML5xxAgotadoEsTransporte(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "<html><body>Servicio en mantenimiento, vuelva a login más tarde</body></html>")
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(3), f.postHits.Load())
}

func TestDescription_LiveColgadoNoConsumeLaRonda(t *testing.T) {
	f := newFakeAuthority(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.wsdl = func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	cfg := testConfig(f.srv.URL)
	cfg.QueryTimeout = 200 * time.Millisecond
	cfg.MaxRoundElapsed = 5 * time.Second
	c := NewSOAPClient(cfg)

	start := time.Now()
	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, res.Source)
	assert.Less(t, time.Since(start), 2*time.Second, "la fuente live tiene su propio tope")

	start = time.Now()
	res, err = c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, res.Source)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "el respaldo queda en caché")
	assert.Equal(t, int32(1), f.wsdlHits.Load())
}

func TestDescription_RespaldoExpiraYVuelveALive(t *testing.T) {
	calls := 0
	live := sourceFunc{name: SourceLive, load: func(req DescriptionRequest) (*ServiceDescription, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("wsdl no disponible")
		}
		return &ServiceDescription{Service: req.Service, Endpoint: req.Endpoint, Operations: []string{"rEnviConsDe"}, Source: SourceLive}, nil
	}}
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	r := NewDescriptionResolver(DescriptionPolicy{TTL: 10 * time.Minute, FallbackTTL: time.Minute},
		zerolog.Nop(), nil, live, StaticSource{})
	r.now = func() time.Time { return now }
	req := DescriptionRequest{Service: OpQuery, Endpoint: "https://local/ws"}

	desc, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, desc.Source)

	now = now.Add(30 * time.Second)
	desc, err = r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, desc.Source)
	assert.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	desc, err = r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, desc.Source)
	assert.Equal(t, 2, calls)
}

func TestDescription_AutenticacionRechazadaInvalidaCache(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		writeXML(w, http.StatusOK, soapResult("0422", "CDC encontrado"))
	}
	c := NewSOAPClient(testConfig(f.srv.URL))

	_, err := c.QueryStatus(context.Background(), testCDC)
	require.ErrorIs(t, err, ErrAuthentication)
	_, err = c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wsdlHits.Load(), "tras un rechazo de credencial se vuelve a leer el WSDL")

	_, err = c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wsdlHits.Load())
}

func TestCall_EsperasExponencialesSinJitter(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	cfg := testConfig(f.srv.URL)
	cfg.MaxAttempts = 4
	cfg.BackoffBase = 10 * time.Millisecond

	var mu sync.Mutex
	var waits []time.Duration
	var attempts []int
	c := NewSOAPClient(cfg, WithRetryObserver(func(attempt int, wait time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, attempt)
		waits = append(waits, wait)
	}))

	_, err := c.QueryStatus(context.Background(), testCDC)
	require.ErrorIs(t, err, ErrTransport)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, waits)
	assert.Equal(t, int32(4), f.postHits.Load())
}

func TestCall_RespuestaNegativaSeRegistraComoAdvertencia(t *testing.T) {
	f := newFakeAuthority(t)
	f.post = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeXML(w, http.StatusOK, soapResult("0160", "XML mal formado"))
	}
	var buf bytes.Buffer
	c := NewSOAPClient(testConfig(f.srv.URL), WithLogger(zerolog.New(&buf)))

	res, err := c.QueryStatus(context.Background(), testCDC)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err(), ErrRemoteRejection)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"codigo":"0160"`)
}

type sourceFunc struct {
	name string
	load func(req DescriptionRequest) (*ServiceDescription, error)
}

func (s sourceFunc) Name() string { return s.name }

func (s sourceFunc) Load(_ context.Context, req DescriptionRequest) (*ServiceDescription, error) {
	return s.load(req)
}
