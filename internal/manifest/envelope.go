package manifest

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"

	"truthsig/internal/domain"
)

// Envelope is the embedded provenance manifest: a signed assertion set
// plus the certificate chain that ties the signing key back to a trust
// root. It travels inside a container-specific segment (see segment.go)
// serialized as JSON.
type Envelope struct {
	Manifest  Body        `json:"manifest"`
	Signature Signature   `json:"signature"`
	CertChain []ChainLink `json:"cert_chain"`
}

// Body carries the signed claims. ContentHash is a hex sha256 over the
// file bytes with the manifest segment itself excised, so the manifest
// describes exactly the file it is embedded in.
type Body struct {
	Generator   string             `json:"generator"`
	Assertions  []domain.Assertion `json:"assertions"`
	ContentHash string             `json:"content_hash"`
}

type Signature struct {
	Alg   string `json:"alg"`
	KID   string `json:"kid"`
	Value string `json:"value"` // base64
}

// ChainLink is one certificate in the chain. Links are ordered leaf
// first; each link's public key is signed by its successor, and the
// final link's key must be a configured trust root.
type ChainLink struct {
	PublicKey string `json:"public_key"` // base64 ed25519
	Signature string `json:"signature"`  // base64, by the next link's key
}

const signatureAlg = "ed25519"

var errBadEnvelope = errors.New("bad envelope")

func (e Envelope) validate() error {
	if e.Signature.Alg != signatureAlg || e.Signature.Value == "" {
		return errBadEnvelope
	}
	if len(e.CertChain) == 0 {
		return errBadEnvelope
	}
	if len(e.Manifest.ContentHash) != 64 {
		return errBadEnvelope
	}
	return nil
}

func (l ChainLink) publicKey() (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(l.PublicKey)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, errBadEnvelope
	}
	return ed25519.PublicKey(raw), nil
}

// canonicalBody renders the signed portion of the envelope with a fixed
// field order and escaping, so signatures verify byte-for-byte across
// implementations.
func canonicalBody(body Body) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	buf.WriteString(`"assertions":[`)
	for i, a := range body.Assertions {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		writeField(buf, "label", a.Label, false)
		writeField(buf, "value", a.Value, true)
		buf.WriteByte('}')
	}
	buf.WriteString(`],`)
	writeField(buf, "content_hash", body.ContentHash, false)
	writeField(buf, "generator", body.Generator, true)
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, key, value string, last bool) {
	writeString(buf, key)
	buf.WriteByte(':')
	writeString(buf, value)
	if !last {
		buf.WriteByte(',')
	}
}

func writeString(buf *bytes.Buffer, value string) {
	buf.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexDigits = []byte("0123456789abcdef")
