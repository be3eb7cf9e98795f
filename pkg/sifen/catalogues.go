// Package sifen contiene catálogos, contratos y validaciones alineados al
// Manual Técnico SIFEN (Sistema Integrado de Facturación Electrónica Nacional).
package sifen

// =============================================================================
// Tipos de documento electrónico (iTiDE)
// =============================================================================

const (
	DocTypeFactura         = 1 // Factura electrónica
	DocTypeFacturaExport   = 2 // Factura electrónica de exportación (reservado)
	DocTypeFacturaImport   = 3 // Factura electrónica de importación (reservado)
	DocTypeAutofactura     = 4 // Autofactura electrónica
	DocTypeNotaCredito     = 5 // Nota de crédito electrónica
	DocTypeNotaDebito      = 6 // Nota de débito electrónica
	DocTypeNotaRemision    = 7 // Nota de remisión electrónica
	DocTypeMin, DocTypeMax = DocTypeFactura, DocTypeNotaRemision
)

// DocumentTypeNames descripción corta por tipo de documento.
var DocumentTypeNames = map[int]string{
	DocTypeFactura:       "Factura electrónica",
	DocTypeFacturaExport: "Factura electrónica de exportación",
	DocTypeFacturaImport: "Factura electrónica de importación",
	DocTypeAutofactura:   "Autofactura electrónica",
	DocTypeNotaCredito:   "Nota de crédito electrónica",
	DocTypeNotaDebito:    "Nota de débito electrónica",
	DocTypeNotaRemision:  "Nota de remisión electrónica",
}

// ValidDocumentType indica si t pertenece al dominio 1–7.
func ValidDocumentType(t int) bool {
	return t >= DocTypeMin && t <= DocTypeMax
}

// =============================================================================
// Ambientes del WS SIFEN
// =============================================================================

const (
	EnvTest = "test" // Ambiente de pruebas (habilitación)
	EnvProd = "prod" // Producción
)

// IsProduction indica si el ambiente exige certificado vigente en cada llamada.
func IsProduction(env string) bool {
	return env == EnvProd
}

// =============================================================================
// Códigos de respuesta (dCodRes). Tabla conciliada: cualquier código que no
// figure aquí se trata como "no reconocido" y nunca cambia el estado.
// =============================================================================

const (
	CodeAprobado              = "0260" // Autorización del DE satisfactoria
	CodeAprobadoObservacion   = "0261" // Autorización del DE con observación
	CodeCDCEncontrado         = "0422" // CDC encontrado (consulta, DE aprobado)
	CodeCDCDuplicado          = "1001" // CDC duplicado: el DE ya fue aprobado
	CodeXMLMalFormado         = "0160" // XML mal formado
	CodeRechazado             = "0270" // DE rechazado
	CodeCDCNoCorresponde      = "1000" // CDC no corresponde con las informaciones del XML
	CodeFirmaInvalida         = "1002" // Firma digital inválida
	CodeRUCInvalido           = "1003" // RUC del emisor inválido
	CodeTimbradoInvalido      = "1004" // Timbrado inválido o vencido
	CodeEventoRegistrado      = "0600" // Evento registrado correctamente
	CodeDECancelado           = "0601" // DE cancelado en SIFEN
	CodeDEInutilizado         = "0602" // DE inutilizado en SIFEN
	CodeServicioMantenimiento = "0500" // Servicio en mantenimiento
	CodeErrorComunicacion     = "0501" // Error de comunicación interno SIFEN
	CodeTiempoAgotado         = "0502" // Tiempo de espera agotado en SIFEN
)

// ResponseClass clase de un código de respuesta.
type ResponseClass string

const (
	ClassApproved     ResponseClass = "approved"
	ClassRejected     ResponseClass = "rejected"
	ClassCancelled    ResponseClass = "cancelled"
	ClassVoided       ResponseClass = "voided"
	ClassTransient    ResponseClass = "transient"
	ClassUnrecognized ResponseClass = "unrecognized"
)

var responseClasses = map[string]ResponseClass{
	CodeAprobado:              ClassApproved,
	CodeAprobadoObservacion:   ClassApproved,
	CodeCDCEncontrado:         ClassApproved,
	CodeCDCDuplicado:          ClassApproved,
	CodeXMLMalFormado:         ClassRejected,
	CodeRechazado:             ClassRejected,
	CodeCDCNoCorresponde:      ClassRejected,
	CodeFirmaInvalida:         ClassRejected,
	CodeRUCInvalido:           ClassRejected,
	CodeTimbradoInvalido:      ClassRejected,
	CodeDECancelado:           ClassCancelled,
	CodeDEInutilizado:         ClassVoided,
	CodeServicioMantenimiento: ClassTransient,
	CodeErrorComunicacion:     ClassTransient,
	CodeTiempoAgotado:         ClassTransient,
}

// ClassifyCode devuelve la clase del código; los desconocidos son ClassUnrecognized.
func ClassifyCode(code string) ResponseClass {
	if c, ok := responseClasses[code]; ok {
		return c
	}
	return ClassUnrecognized
}

// IsEventAccepted indica si la respuesta a un evento (cancelación, inutilización) lo confirma.
func IsEventAccepted(code string) bool {
	return code == CodeEventoRegistrado
}
