package manifest

import (
	"bytes"
	"encoding/binary"
	"errors"

	"truthsig/internal/domain"
)

// Segment placement per container, following C2PA conventions so generic
// tooling can at least locate the envelope:
//
//	JPEG   APP11 marker segment, payload prefixed with "TSIG"
//	PNG    ancillary chunk of type "caBX"
//	MP4    top-level uuid box with boxUUID as the extended type
const jpegSegmentMagic = "TSIG"

var (
	pngChunkType = []byte("caBX")
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	boxUUID      = []byte{
		0x74, 0x73, 0x69, 0x67, 0x2d, 0x6d, 0x61, 0x6e,
		0x69, 0x66, 0x65, 0x73, 0x74, 0x2d, 0x76, 0x31,
	}
	errMalformedSegment = errors.New("malformed manifest segment")
)

// segment is a located manifest carrier: the envelope payload plus the
// byte range [start,end) the carrier occupies in the file. Hashing the
// file with that range excised yields the covered content hash.
type segment struct {
	payload []byte
	start   int
	end     int
}

// excise returns the file bytes with the carrier segment removed.
func (s *segment) excise(data []byte) []byte {
	out := make([]byte, 0, len(data)-(s.end-s.start))
	out = append(out, data[:s.start]...)
	out = append(out, data[s.end:]...)
	return out
}

// findSegment scans the container for the manifest carrier. A nil
// segment with nil error means the file simply carries no manifest;
// errMalformedSegment means a carrier was found but its framing is
// broken, which must classify as broken rather than absent.
func findSegment(data []byte, kind domain.MediaKind) (*segment, error) {
	switch kind {
	case domain.MediaKindImage:
		if bytes.HasPrefix(data, pngSignature) {
			return findPNGChunk(data)
		}
		return findJPEGSegment(data)
	case domain.MediaKindVideo:
		return findMP4Box(data)
	}
	return nil, nil
}

func findJPEGSegment(data []byte) (*segment, error) {
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return nil, nil
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xff {
			return nil, nil
		}
		marker := data[i+1]
		// Standalone markers and the start of entropy-coded data end the
		// metadata region.
		if marker == 0xd9 || marker == 0xda {
			return nil, nil
		}
		if marker >= 0xd0 && marker <= 0xd7 {
			i += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if length < 2 {
			return nil, nil
		}
		end := i + 2 + length
		if marker == 0xeb { // APP11
			body := data[i+4:]
			if end <= len(data) {
				body = data[i+4 : end]
			}
			if bytes.HasPrefix(body, []byte(jpegSegmentMagic)) {
				// The carrier is recognized; a length field overrunning
				// the file is broken framing, not absence.
				if end > len(data) {
					return nil, errMalformedSegment
				}
				return &segment{
					payload: body[len(jpegSegmentMagic):],
					start:   i,
					end:     end,
				}, nil
			}
		}
		if end > len(data) {
			return nil, nil
		}
		i = end
	}
	return nil, nil
}

func findPNGChunk(data []byte) (*segment, error) {
	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		chunkType := data[i+4 : i+8]
		end := i + 12 + length
		if bytes.Equal(chunkType, pngChunkType) {
			if end > len(data) {
				return nil, errMalformedSegment
			}
			return &segment{payload: data[i+8 : i+8+length], start: i, end: end}, nil
		}
		if end > len(data) {
			return nil, nil
		}
		if bytes.Equal(chunkType, []byte("IEND")) {
			return nil, nil
		}
		i = end
	}
	return nil, nil
}

func findMP4Box(data []byte) (*segment, error) {
	i := 0
	for i+8 <= len(data) {
		size := int64(binary.BigEndian.Uint32(data[i : i+4]))
		boxType := data[i+4 : i+8]
		headerLen := 8
		if size == 1 {
			if i+16 > len(data) {
				return nil, nil
			}
			size = int64(binary.BigEndian.Uint64(data[i+8 : i+16]))
			headerLen = 16
		} else if size == 0 {
			size = int64(len(data) - i)
		}
		if size < int64(headerLen) {
			return nil, nil
		}
		end := int64(i) + size
		if bytes.Equal(boxType, []byte("uuid")) {
			if i+headerLen+16 > len(data) || end > int64(len(data)) {
				return nil, errMalformedSegment
			}
			if bytes.Equal(data[i+headerLen:i+headerLen+16], boxUUID) {
				return &segment{
					payload: data[i+headerLen+16 : end],
					start:   i,
					end:     int(end),
				}, nil
			}
		}
		if end > int64(len(data)) {
			return nil, nil
		}
		i = int(end)
	}
	return nil, nil
}
