package report

import (
	"bytes"
	"fmt"
	"time"

	"truthsig/internal/usecase"
)

// RenderText wraps the snapshot payload in a plain-text envelope. The
// payload bytes are emitted untouched so a reader can recompute the
// payload hash from the document itself.
func RenderText(s usecase.ReportSnapshot) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(s.PayloadText)
	fmt.Fprintf(buf, "\n---\ngenerated_at: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(buf, "payload_sha256: %s\n", s.PayloadHash)
	return buf.Bytes()
}
