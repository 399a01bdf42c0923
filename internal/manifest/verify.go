package manifest

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"truthsig/internal/domain"
)

// TrustPolicy is the explicit trust-root configuration for manifest
// verification. Multiple policies can coexist; nothing here is global.
type TrustPolicy struct {
	Roots []ed25519.PublicKey
}

func NewTrustPolicy(base64Keys []string) (TrustPolicy, error) {
	policy := TrustPolicy{}
	for _, encoded := range base64Keys {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return TrustPolicy{}, fmt.Errorf("decode trust root: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return TrustPolicy{}, errors.New("trust root is not an ed25519 public key")
		}
		policy.Roots = append(policy.Roots, ed25519.PublicKey(raw))
	}
	return policy, nil
}

func (p TrustPolicy) trusted(key ed25519.PublicKey) bool {
	for _, root := range p.Roots {
		if root.Equal(key) {
			return true
		}
	}
	return false
}

// Verifier is a pure read-only parser and verifier over blob bytes.
type Verifier struct {
	Policy TrustPolicy
}

// Verify locates the embedded manifest and runs the full verification
// chain: envelope decode, certificate chain against the trust roots,
// manifest signature, and covered-content hash. Every failure mode after
// a carrier segment is found fails closed as broken with a reason code;
// only a missing segment reports absent.
func (v *Verifier) Verify(data []byte, kind domain.MediaKind) domain.ManifestResult {
	seg, err := findSegment(data, kind)
	if err != nil {
		return broken(domain.BrokenMalformedSegment)
	}
	if seg == nil {
		return domain.ManifestResult{Present: false, Verified: false}
	}

	var env Envelope
	if err := json.Unmarshal(seg.payload, &env); err != nil {
		return broken(domain.BrokenBadEnvelope)
	}
	if err := env.validate(); err != nil {
		return broken(domain.BrokenBadEnvelope)
	}

	leaf, code := v.verifyChain(env.CertChain)
	if code != "" {
		return broken(code)
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature.Value)
	if err != nil {
		return broken(domain.BrokenBadEnvelope)
	}
	if !ed25519.Verify(leaf, canonicalBody(env.Manifest), sig) {
		return broken(domain.BrokenManifestSignatureInvalid)
	}

	if domain.SHA256Hex(seg.excise(data)) != env.Manifest.ContentHash {
		return broken(domain.BrokenContentHashMismatch)
	}

	return domain.ManifestResult{
		Present:    true,
		Verified:   true,
		Generator:  env.Manifest.Generator,
		Assertions: env.Manifest.Assertions,
	}
}

// verifyChain walks the certificate chain leaf-first: each link's key
// must be signed by its successor, and the final key must be a trust
// root. Returns the leaf key on success, or a broken-reason code.
func (v *Verifier) verifyChain(chain []ChainLink) (ed25519.PublicKey, string) {
	keys := make([]ed25519.PublicKey, len(chain))
	for i, link := range chain {
		key, err := link.publicKey()
		if err != nil {
			return nil, domain.BrokenBadEnvelope
		}
		keys[i] = key
	}
	if !v.Policy.trusted(keys[len(keys)-1]) {
		return nil, domain.BrokenUntrustedRoot
	}
	for i := 0; i < len(chain)-1; i++ {
		sig, err := base64.StdEncoding.DecodeString(chain[i].Signature)
		if err != nil {
			return nil, domain.BrokenBadEnvelope
		}
		if !ed25519.Verify(keys[i+1], keys[i], sig) {
			return nil, domain.BrokenChainSignatureInvalid
		}
	}
	return keys[0], ""
}

func broken(reason string) domain.ManifestResult {
	return domain.ManifestResult{Present: true, Verified: false, BrokenReason: reason}
}
