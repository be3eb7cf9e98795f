package sifen

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
)

const (
	nsSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	nsSIFEN  = "http://ekuatia.set.gov.py/sifen/xsd"

	contentTypeSOAP12 = "application/soap+xml; charset=utf-8"
)

// Nombres de operación declarados en el WSDL (coinciden con el elemento del body).
var operationNames = map[Operation]string{
	OpQuery:  "rEnviConsDeRequest",
	OpSubmit: "rEnviDe",
	OpEvent:  "rEnviEventoDe",
}

// wsdlOperations nombre de la operación en el portType del WSDL.
var wsdlOperations = map[Operation]string{
	OpQuery:  "rEnviConsDe",
	OpSubmit: "rEnviDe",
	OpEvent:  "rEnviEventoDe",
}

var requestSeq atomic.Uint64

// nextRequestID dId: marca de tiempo + secuencia, solo dígitos.
func nextRequestID(now time.Time) string {
	seq := requestSeq.Add(1) % 1000
	return now.Format("20060102150405") + fmt.Sprintf("%03d", seq)
}

// ── Construcción de envelopes SOAP 1.2 ────────────────────────────────────────

func newEnvelope(op Operation, dID string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", nsSOAP12)
	env.CreateElement("soap:Header")
	body := env.CreateElement("soap:Body")
	req := body.CreateElement(operationNames[op])
	req.CreateAttr("xmlns", nsSIFEN)
	req.CreateElement("dId").SetText(dID)
	return doc, req
}

// buildQueryEnvelope rEnviConsDeRequest{dId, dCDC}.
func buildQueryEnvelope(dID, cdc string) ([]byte, error) {
	doc, req := newEnvelope(OpQuery, dID)
	req.CreateElement("dCDC").SetText(cdc)
	return doc.WriteToBytes()
}

// buildSubmitEnvelope rEnviDe{dId, xDE}; el payload es el rDE firmado.
func buildSubmitEnvelope(dID string, payload []byte) ([]byte, error) {
	doc, req := newEnvelope(OpSubmit, dID)
	if err := embedPayload(req.CreateElement("xDE"), payload); err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

// buildEventEnvelope rEnviEventoDe{dId, dEvReg}; el payload es el evento firmado.
func buildEventEnvelope(dID string, payload []byte) ([]byte, error) {
	doc, req := newEnvelope(OpEvent, dID)
	if err := embedPayload(req.CreateElement("dEvReg"), payload); err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

func embedPayload(parent *etree.Element, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("sifen: payload vacío")
	}
	inner := etree.NewDocument()
	if err := inner.ReadFromBytes(payload); err != nil {
		return fmt.Errorf("sifen: payload no es XML válido: %w", err)
	}
	root := inner.Root()
	if root == nil {
		return fmt.Errorf("sifen: payload sin elemento raíz")
	}
	parent.AddChild(root.Copy())
	return nil
}

// ── Lectura de respuestas ─────────────────────────────────────────────────────

// soapResponse contenido relevante de una respuesta SOAP.
type soapResponse struct {
	Code        string
	Message     string
	Status      string
	ProcessedAt *time.Time
	Fault       *soapFault
}

type soapFault struct {
	Code   string // Receiver | Sender (o Server | Client en SOAP 1.1)
	Reason string
}

// receiverSide indica si la falla es del lado del servidor (reintentable).
func (f *soapFault) receiverSide() bool {
	code := strings.ToLower(f.Code)
	return strings.Contains(code, "receiver") || strings.Contains(code, "server")
}

// charsetReader decodifica las respuestas ISO-8859-1 que devuelve SIFEN.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("sifen: charset no soportado %q", charset)
}

// parseResponse lee el envelope y extrae dCodRes, dMsgRes, dEstRes, dFecProc o el Fault.
func parseResponse(raw []byte) (*soapResponse, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("sifen: respuesta XML ilegible: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("sifen: respuesta sin raíz")
	}

	if fault := doc.FindElement("//Body/Fault"); fault != nil {
		f := &soapFault{}
		if v := fault.FindElement("./Code/Value"); v != nil {
			f.Code = strings.TrimSpace(v.Text())
		} else if v := fault.FindElement("./faultcode"); v != nil {
			f.Code = strings.TrimSpace(v.Text())
		}
		if r := fault.FindElement("./Reason/Text"); r != nil {
			f.Reason = strings.TrimSpace(r.Text())
		} else if r := fault.FindElement("./faultstring"); r != nil {
			f.Reason = strings.TrimSpace(r.Text())
		}
		return &soapResponse{Fault: f}, nil
	}

	code := doc.FindElement("//dCodRes")
	if code == nil || strings.TrimSpace(code.Text()) == "" {
		return nil, fmt.Errorf("sifen: respuesta sin dCodRes")
	}
	resp := &soapResponse{Code: strings.TrimSpace(code.Text())}
	if msg := doc.FindElement("//dMsgRes"); msg != nil {
		resp.Message = strings.TrimSpace(msg.Text())
	}
	if st := doc.FindElement("//dEstRes"); st != nil {
		resp.Status = strings.TrimSpace(st.Text())
	}
	if fp := doc.FindElement("//dFecProc"); fp != nil {
		if t, ok := parseProcessedAt(fp.Text()); ok {
			resp.ProcessedAt = &t
		}
	}
	return resp, nil
}

var processedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseProcessedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range processedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isNumeric solo dígitos.
func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
