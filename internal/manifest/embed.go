package manifest

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"

	"truthsig/internal/domain"
)

// Capture-side helpers: build a signed envelope for a media file and
// embed it in the container. The service itself only verifies; these
// exist for capture tooling and for exercising the verifier in tests.

// Sign builds an envelope over the given media bytes. The content hash
// covers the file as-is, since the carrier segment added later by Embed
// is excised again before hashing on the verify side. Keys are ordered
// leaf first; parents sign the raw public key of the link below them.
func Sign(media []byte, body Body, keys []ed25519.PrivateKey) (Envelope, error) {
	if len(keys) == 0 {
		return Envelope{}, errors.New("at least one signing key required")
	}
	body.ContentHash = domain.SHA256Hex(media)

	chain := make([]ChainLink, len(keys))
	for i, key := range keys {
		pub := key.Public().(ed25519.PublicKey)
		chain[i] = ChainLink{PublicKey: base64.StdEncoding.EncodeToString(pub)}
		if i > 0 {
			childPub := keys[i-1].Public().(ed25519.PublicKey)
			chain[i-1].Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(key, childPub))
		}
	}

	sig := ed25519.Sign(keys[0], canonicalBody(body))
	return Envelope{
		Manifest: body,
		Signature: Signature{
			Alg:   signatureAlg,
			Value: base64.StdEncoding.EncodeToString(sig),
		},
		CertChain: chain,
	}, nil
}

// Embed inserts the serialized envelope into the container and returns
// the new file bytes.
func Embed(media []byte, kind domain.MediaKind, env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	switch kind {
	case domain.MediaKindImage:
		if bytes.HasPrefix(media, pngSignature) {
			return embedPNG(media, payload)
		}
		return embedJPEG(media, payload)
	case domain.MediaKindVideo:
		return embedMP4(media, payload), nil
	}
	return nil, fmt.Errorf("no manifest carrier for media kind %q", kind)
}

func embedJPEG(media, payload []byte) ([]byte, error) {
	if len(media) < 2 || media[0] != 0xff || media[1] != 0xd8 {
		return nil, errors.New("not a JPEG stream")
	}
	body := append([]byte(jpegSegmentMagic), payload...)
	if len(body)+2 > 0xffff {
		return nil, errors.New("manifest too large for a single APP11 segment")
	}
	seg := make([]byte, 0, 4+len(body))
	seg = append(seg, 0xff, 0xeb)
	seg = binary.BigEndian.AppendUint16(seg, uint16(len(body)+2))
	seg = append(seg, body...)

	out := make([]byte, 0, len(media)+len(seg))
	out = append(out, media[:2]...)
	out = append(out, seg...)
	out = append(out, media[2:]...)
	return out, nil
}

func embedPNG(media, payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(media, pngSignature) {
		return nil, errors.New("not a PNG stream")
	}
	chunk := make([]byte, 0, 12+len(payload))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(payload)))
	chunk = append(chunk, pngChunkType...)
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	// After the IHDR chunk, before everything else.
	ihdrEnd := len(pngSignature) + 12 + int(binary.BigEndian.Uint32(media[len(pngSignature):len(pngSignature)+4]))
	if ihdrEnd > len(media) {
		return nil, errors.New("truncated PNG stream")
	}
	out := make([]byte, 0, len(media)+len(chunk))
	out = append(out, media[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, media[ihdrEnd:]...)
	return out, nil
}

func embedMP4(media, payload []byte) []byte {
	box := make([]byte, 0, 24+len(payload))
	box = binary.BigEndian.AppendUint32(box, uint32(24+len(payload)))
	box = append(box, []byte("uuid")...)
	box = append(box, boxUUID...)
	box = append(box, payload...)
	return append(append([]byte{}, media...), box...)
}
