package forensic

import (
	"errors"
	"testing"

	"truthsig/internal/domain"
)

func TestDetectMediaKind(t *testing.T) {
	mp4Prefix := append([]byte{0, 0, 0, 0x18}, []byte("ftypisom\x00\x00\x02\x00isomiso2")...)
	tests := []struct {
		name   string
		prefix []byte
		want   domain.MediaKind
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, domain.MediaKindImage},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}, domain.MediaKindImage},
		{"mp4", mp4Prefix, domain.MediaKindVideo},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, mime, err := DetectMediaKind(tc.prefix)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if kind != tc.want {
				t.Fatalf("kind = %s, want %s", kind, tc.want)
			}
			if mime == "" {
				t.Fatal("expected a concrete mime type")
			}
		})
	}
}

func TestDetectMediaKind_RejectsOtherTypes(t *testing.T) {
	for _, prefix := range [][]byte{
		[]byte("plain text file"),
		[]byte("%PDF-1.7 ..."),
		{'G', 'I', 'F', '8', '9', 'a'},
	} {
		if _, _, err := DetectMediaKind(prefix); !errors.Is(err, domain.ErrUnsupportedMediaKind) {
			t.Fatalf("prefix %q: expected unsupported media kind, got %v", prefix, err)
		}
	}
}
