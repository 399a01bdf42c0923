package domain

// Broken-manifest reason codes. A manifest that is present but fails any
// stage of verification is classified broken with exactly one of these;
// absence of a manifest segment is not an error and carries no code.
const (
	BrokenMalformedSegment         = "MALFORMED_SEGMENT"
	BrokenBadEnvelope              = "BAD_ENVELOPE"
	BrokenUntrustedRoot            = "UNTRUSTED_ROOT"
	BrokenChainSignatureInvalid    = "CHAIN_SIGNATURE_INVALID"
	BrokenManifestSignatureInvalid = "MANIFEST_SIGNATURE_INVALID"
	BrokenContentHashMismatch      = "CONTENT_HASH_MISMATCH"
)

type Assertion struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ManifestResult is attached 1:1 to an evidence item's latest analysis
// run. It is recomputed whole on every run, never patched.
type ManifestResult struct {
	Present      bool        `json:"present"`
	Verified     bool        `json:"verified"`
	Generator    string      `json:"generator,omitempty"`
	Assertions   []Assertion `json:"assertions,omitempty"`
	BrokenReason string      `json:"broken_reason,omitempty"`
}
