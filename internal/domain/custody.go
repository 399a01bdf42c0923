package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

const (
	// CustodyChainVersion is baked into every chained hash so a future
	// layout change cannot silently validate against old chains.
	CustodyChainVersion = "custody_chain_v1"

	// CustodyGenesisHash is the fixed predecessor of the first event in
	// every case chain.
	CustodyGenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

type CustodyEventType string

const (
	EventCaseCreated          CustodyEventType = "CASE_CREATED"
	EventEvidenceSubmitted    CustodyEventType = "EVIDENCE_SUBMITTED"
	EventDuplicateDetected    CustodyEventType = "DUPLICATE_DETECTED"
	EventAnalysisStarted      CustodyEventType = "ANALYSIS_STARTED"
	EventAnalysisCompleted    CustodyEventType = "ANALYSIS_COMPLETED"
	EventAnalysisFailed       CustodyEventType = "ANALYSIS_FAILED"
	EventEvidenceReclassified CustodyEventType = "EVIDENCE_RECLASSIFIED"
	EventEvidenceRemoved      CustodyEventType = "EVIDENCE_REMOVED"
	EventReportExported       CustodyEventType = "REPORT_EXPORTED"
)

// CustodyEvent is one link in a case's append-only hash chain. Events are
// never edited or deleted; corrections are compensating events appended
// after the fact.
type CustodyEvent struct {
	ID            string           `json:"id"`
	CaseID        string           `json:"case_id"`
	Seq           int64            `json:"seq"`
	EventType     CustodyEventType `json:"event_type"`
	Actor         string           `json:"actor"`
	Payload       []byte           `json:"payload"`
	PayloadHash   string           `json:"payload_hash"`
	PrevEventHash string           `json:"prev_event_hash"`
	EventHash     string           `json:"event_hash"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ComputeEventHash returns the chained hash of an event: a sha256 over a
// canonical JSON rendering of the hash-relevant fields, including the
// predecessor's hash. PayloadHash and PrevEventHash must already be set.
func ComputeEventHash(event CustodyEvent) (string, error) {
	if event.CaseID == "" || event.EventType == "" {
		return "", errors.New("custody event missing case_id or event_type")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("custody event missing payload_hash or prev_event_hash")
	}
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeKV(buf, "actor", event.Actor, false)
	writeKV(buf, "case_id", event.CaseID, false)
	writeKV(buf, "created_at", event.CreatedAt.UTC().Format(time.RFC3339Nano), false)
	writeKV(buf, "event_type", string(event.EventType), false)
	writeKV(buf, "payload_hash", event.PayloadHash, false)
	writeKV(buf, "prev_event_hash", event.PrevEventHash, false)
	writeKVNumber(buf, "seq", event.Seq, false)
	writeKV(buf, "v", CustodyChainVersion, true)
	buf.WriteByte('}')
	return SHA256Hex(buf.Bytes()), nil
}

func SHA256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func writeKV(buf *bytes.Buffer, key, value string, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	writeJSONString(buf, value)
	if !last {
		buf.WriteByte(',')
	}
}

func writeKVNumber(buf *bytes.Buffer, key string, value int64, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(value, 10))
	if !last {
		buf.WriteByte(',')
	}
}

func writeJSONString(buf *bytes.Buffer, value string) {
	buf.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")
