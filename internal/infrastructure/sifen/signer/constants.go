// Constantes para la firma XML-DSig enveloped del DE y sus eventos.

package signer

// Namespaces y algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// SignedElements elementos firmables en orden de preferencia: DE dentro de rDE
// y rEve dentro de rGesEve. Ambos llevan el atributo Id al que apunta la Reference.
var SignedElements = []string{"DE", "rEve"}
