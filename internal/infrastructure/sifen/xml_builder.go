package sifen

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// Versión del formato del DE.
const formatVersion = "150"

// Claves aceptadas por XMLBuilderService en los mapas de parámetros.
const (
	KeyRUC           = "ruc"
	KeyCheckDigit    = "dv"
	KeyName          = "nombre"
	KeyTimbrado      = "timbrado"
	KeyCDC           = "cdc"
	KeyDocType       = "tipo"
	KeyEstablishment = "establecimiento"
	KeyPoint         = "punto"
	KeyNumber        = "numero"
	KeyIssueDate     = "fecha"
	KeyCurrency      = "moneda"
	KeyTotal         = "total"
	KeyTax           = "iva"
	KeySecurityCode  = "codigo_seguridad"
	KeyEventType     = "evento"
	KeyReason        = "motivo"
	KeyFrom          = "desde"
	KeyTo            = "hasta"
	KeySignedAt      = "fecha_firma"
)

// Tipos de evento del emisor.
const (
	EventTypeCancel = "cancelacion"
	EventTypeVoid   = "inutilizacion"
)

// XMLBuilderService construye el XML mínimo del DE (rDE/DE) y de los eventos (rGesEve/rEve).
// No cubre el esquema completo: solo los grupos que identifican al documento.
type XMLBuilderService struct{}

var _ pkgsifen.DocumentBuilder = (*XMLBuilderService)(nil)

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el rDE con el DE identificado por su CDC.
func (s *XMLBuilderService) Build(issuerParams, documentData, options map[string]any) ([]byte, error) {
	cdc := str(documentData, KeyCDC)
	if cdc == "" {
		return nil, fmt.Errorf("sifen: el documento no tiene CDC")
	}
	docType, ok := documentData[KeyDocType].(int)
	if !ok || !pkgsifen.ValidDocumentType(docType) {
		return nil, fmt.Errorf("sifen: tipo de documento inválido")
	}
	issueDate, _ := documentData[KeyIssueDate].(time.Time)
	signedAt := timeOr(options, KeySignedAt, time.Now())

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	rde := doc.CreateElement("rDE")
	rde.CreateAttr("xmlns", nsSIFEN)
	rde.CreateElement("dVerFor").SetText(formatVersion)

	de := rde.CreateElement("DE")
	de.CreateAttr("Id", cdc)
	de.CreateElement("dDVId").SetText(cdc[len(cdc)-1:])
	de.CreateElement("dFecFirma").SetText(signedAt.Format("2006-01-02T15:04:05"))
	de.CreateElement("dCodSeg").SetText(str(documentData, KeySecurityCode))

	timb := de.CreateElement("gTimb")
	timb.CreateElement("iTiDE").SetText(fmt.Sprintf("%d", docType))
	timb.CreateElement("dDesTiDE").SetText(pkgsifen.DocumentTypeNames[docType])
	timb.CreateElement("dNumTim").SetText(str(issuerParams, KeyTimbrado))
	timb.CreateElement("dEst").SetText(str(documentData, KeyEstablishment))
	timb.CreateElement("dPunExp").SetText(str(documentData, KeyPoint))
	timb.CreateElement("dNumDoc").SetText(str(documentData, KeyNumber))

	gral := de.CreateElement("gDatGralOpe")
	gral.CreateElement("dFeEmiDE").SetText(issueDate.Format("2006-01-02T15:04:05"))
	ope := gral.CreateElement("gOpeCom")
	ope.CreateElement("cMoneOpe").SetText(str(documentData, KeyCurrency))
	emis := gral.CreateElement("gEmis")
	emis.CreateElement("dRucEm").SetText(str(issuerParams, KeyRUC))
	emis.CreateElement("dDVEmi").SetText(str(issuerParams, KeyCheckDigit))
	emis.CreateElement("dNomEmi").SetText(str(issuerParams, KeyName))

	tot := de.CreateElement("gTotSub")
	tot.CreateElement("dTotIVA").SetText(amount(documentData, KeyTax))
	tot.CreateElement("dTotGralOpe").SetText(amount(documentData, KeyTotal))

	doc.Indent(2)
	return doc.WriteToBytes()
}

// BuildEvent genera rGesEve/rEve para cancelación (por CDC) o inutilización (por rango).
func (s *XMLBuilderService) BuildEvent(eventID string, issuerParams, eventData, options map[string]any) ([]byte, error) {
	if eventID == "" {
		return nil, fmt.Errorf("sifen: el evento no tiene Id")
	}
	signedAt := timeOr(options, KeySignedAt, time.Now())

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	ges := doc.CreateElement("rGesEve")
	ges.CreateAttr("xmlns", nsSIFEN)
	eve := ges.CreateElement("rEve")
	eve.CreateAttr("Id", eventID)
	eve.CreateElement("dFecFirma").SetText(signedAt.Format("2006-01-02T15:04:05"))
	eve.CreateElement("dVerFor").SetText(formatVersion)
	group := eve.CreateElement("gGroupTiEvt")

	switch str(eventData, KeyEventType) {
	case EventTypeCancel:
		cdc := str(eventData, KeyCDC)
		if cdc == "" {
			return nil, fmt.Errorf("sifen: la cancelación requiere CDC")
		}
		can := group.CreateElement("rGeVeCan")
		can.CreateElement("Id").SetText(cdc)
		can.CreateElement("mOtEve").SetText(str(eventData, KeyReason))
	case EventTypeVoid:
		inu := group.CreateElement("rGeVeInu")
		inu.CreateElement("dNumTim").SetText(str(issuerParams, KeyTimbrado))
		inu.CreateElement("dEst").SetText(str(eventData, KeyEstablishment))
		inu.CreateElement("dPunExp").SetText(str(eventData, KeyPoint))
		inu.CreateElement("dNumIn").SetText(str(eventData, KeyFrom))
		inu.CreateElement("dNumFin").SetText(str(eventData, KeyTo))
		if t, ok := eventData[KeyDocType].(int); ok {
			inu.CreateElement("iTiDE").SetText(fmt.Sprintf("%d", t))
		}
		inu.CreateElement("mOtEve").SetText(str(eventData, KeyReason))
	default:
		return nil, fmt.Errorf("sifen: tipo de evento desconocido %q", str(eventData, KeyEventType))
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// ── helpers privados ──────────────────────────────────────────────────────────

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func amount(m map[string]any, key string) string {
	if d, ok := m[key].(decimal.Decimal); ok {
		return d.String()
	}
	return str(m, key)
}

func timeOr(m map[string]any, key string, dflt time.Time) time.Time {
	if t, ok := m[key].(time.Time); ok && !t.IsZero() {
		return t
	}
	return dflt
}
