// Servicio de firma digital XML-DSig (enveloped, RSA-SHA256) para DE y eventos SIFEN.
// Inserta <Signature> como hermano siguiente del elemento firmado.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/sifen-api/pkg/sifen"
)

// DigitalSignatureService implementa sifen.Signer con el certificado cliente.
type DigitalSignatureService struct {
	cert tls.Certificate
}

// NewDigitalSignatureService crea el servicio. El certificado debe incluir llave RSA.
func NewDigitalSignatureService(cert tls.Certificate) (*DigitalSignatureService, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("sifen: certificado vacío")
	}
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return nil, fmt.Errorf("sifen: el certificado debe incluir llave privada RSA")
	}
	return &DigitalSignatureService{cert: cert}, nil
}

// Sign implementa sifen.Signer. Firma el elemento DE (o rEve) referenciado por su Id.
func (s *DigitalSignatureService) Sign(xmlBytes []byte) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("sifen: XML vacío")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("sifen: parsear XML: %w", err)
	}
	target := findSignedElement(doc)
	if target == nil {
		return nil, fmt.Errorf("sifen: no se encontró DE ni rEve con atributo Id")
	}
	id := target.SelectAttrValue("Id", "")
	if id == "" {
		return nil, fmt.Errorf("sifen: el elemento %s no tiene Id", target.Tag)
	}

	// 1) Digest del elemento referenciado (C14N)
	elemDoc := etree.NewDocumentWithRoot(target.Copy())
	elemBytes, err := elemDoc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("sifen: serializar %s: %w", target.Tag, err)
	}
	canonicalElem, err := canonicalizeXML(elemBytes)
	if err != nil {
		canonicalElem = elemBytes
	}
	digest := sha256.Sum256(canonicalElem)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo canonicalizado y firmado con RSA-SHA256
	signedInfoXML := buildSignedInfo(id, digestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	priv := s.cert.PrivateKey.(*rsa.PrivateKey)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("sifen: firmar SignedInfo: %w", err)
	}

	// 3) Signature completa (KeyInfo con X509Certificate)
	signatureXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(s.cert.Certificate[0]))

	// 4) Insertar como hermano siguiente del elemento firmado
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("sifen: parsear Signature: %w", err)
	}
	parent := target.Parent()
	if parent == nil || target == doc.Root() {
		return nil, fmt.Errorf("sifen: %s debe estar contenido en rDE o rGesEve", target.Tag)
	}
	parent.InsertChildAt(target.Index()+1, sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("sifen: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

func findSignedElement(doc *etree.Document) *etree.Element {
	for _, tag := range SignedElements {
		if el := doc.FindElement("//" + tag + "[@Id]"); el != nil {
			return el
		}
	}
	return nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(id, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="#` + escapeXML(id) + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

var _ sifen.Signer = (*DigitalSignatureService)(nil)
