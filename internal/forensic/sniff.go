package forensic

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"truthsig/internal/domain"
)

// DetectMediaKind sniffs the media kind from content bytes. The declared
// filename is never consulted; only magic bytes and container structure
// count.
func DetectMediaKind(prefix []byte) (domain.MediaKind, string, error) {
	mtype := mimetype.Detect(prefix)
	switch mtype.String() {
	case "image/jpeg", "image/png":
		return domain.MediaKindImage, mtype.String(), nil
	case "video/mp4", "video/quicktime":
		return domain.MediaKindVideo, mtype.String(), nil
	}
	return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaKind, mtype.String())
}
