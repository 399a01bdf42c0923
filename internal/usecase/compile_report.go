package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"truthsig/internal/domain"
)

// ReportSnapshot is a frozen view of a case (or a single evidence item)
// for export. The evidentiary payload (PayloadText and its hash) is a
// pure function of the snapshot input: regenerating a report over the
// same data yields byte-identical payload. GeneratedAt lives outside
// the payload.
type ReportSnapshot struct {
	GeneratedAt time.Time
	Case        domain.Case
	Items       []ReportItem
	Ledger      []domain.CustodyEvent
	PayloadText string
	PayloadHash string
}

type ReportItem struct {
	Evidence domain.Evidence        `json:"evidence"`
	Score    *domain.TrustScore     `json:"trust_score,omitempty"`
	Manifest *domain.ManifestResult `json:"manifest,omitempty"`
}

// ReleasePolicy optionally gates report export; a nil policy allows
// everything.
type ReleasePolicy interface {
	Authorize(ctx context.Context, snapshot ReportSnapshot) error
}

// CompileReport assembles snapshots. The custody ledger is verified
// before it is included: a report must never be built on a chain that
// does not check out.
type CompileReport struct {
	Cases    CaseRepository
	Evidence EvidenceRepository
	Scores   TrustScoreRepository
	Analysis AnalysisRepository
	Ledger   CustodyEventRepository
	Policy   ReleasePolicy
	Clock    Clock
}

func (uc *CompileReport) ForCase(ctx context.Context, caseID string) (ReportSnapshot, error) {
	c, err := uc.Cases.GetByID(ctx, caseID)
	if err != nil {
		return ReportSnapshot{}, err
	}
	evidence, err := uc.Evidence.ListByCase(ctx, caseID)
	if err != nil {
		return ReportSnapshot{}, err
	}
	return uc.build(ctx, *c, evidence)
}

func (uc *CompileReport) ForEvidence(ctx context.Context, evidenceID string) (ReportSnapshot, error) {
	evidence, err := uc.Evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return ReportSnapshot{}, err
	}
	c, err := uc.Cases.GetByID(ctx, evidence.CaseID)
	if err != nil {
		return ReportSnapshot{}, err
	}
	return uc.build(ctx, *c, []domain.Evidence{*evidence})
}

func (uc *CompileReport) build(ctx context.Context, c domain.Case, evidence []domain.Evidence) (ReportSnapshot, error) {
	if err := VerifyCaseCustodyChain(ctx, uc.Ledger, c.ID); err != nil {
		return ReportSnapshot{}, err
	}
	ledger, err := uc.Ledger.ListByCase(ctx, c.ID)
	if err != nil {
		return ReportSnapshot{}, err
	}

	items := make([]ReportItem, 0, len(evidence))
	for _, e := range evidence {
		item := ReportItem{Evidence: e}
		if score, err := uc.Scores.GetLatest(ctx, e.ID); err == nil {
			item.Score = score
		} else if !errors.Is(err, domain.ErrNotFound) {
			return ReportSnapshot{}, err
		}
		if manifestResult, _, err := uc.Analysis.GetLatestResults(ctx, e.ID); err == nil {
			item.Manifest = manifestResult
		} else if !errors.Is(err, domain.ErrNotFound) {
			return ReportSnapshot{}, err
		}
		items = append(items, item)
	}

	snapshot := ReportSnapshot{
		GeneratedAt: uc.Clock.now().UTC(),
		Case:        c,
		Items:       items,
		Ledger:      ledger,
	}
	snapshot.PayloadText = renderPayload(snapshot)
	snapshot.PayloadHash = domain.SHA256Hex([]byte(snapshot.PayloadText))

	if uc.Policy != nil {
		if err := uc.Policy.Authorize(ctx, snapshot); err != nil {
			return ReportSnapshot{}, err
		}
	}
	return snapshot, nil
}

// renderPayload writes the evidentiary payload: every hash, score,
// reason and ledger entry in a fixed order and format. Nothing here may
// read the clock or any state outside the snapshot.
func renderPayload(s ReportSnapshot) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "EVIDENCE INTEGRITY REPORT\n")
	fmt.Fprintf(b, "case: %s\n", s.Case.ID)
	fmt.Fprintf(b, "title: %s\n", s.Case.Title)
	fmt.Fprintf(b, "status: %s\n", s.Case.Status)

	for _, item := range s.Items {
		e := item.Evidence
		fmt.Fprintf(b, "\n[evidence %s]\n", e.ID)
		fmt.Fprintf(b, "filename: %s\n", e.Filename)
		fmt.Fprintf(b, "digest: sha256:%s\n", e.Digest)
		fmt.Fprintf(b, "media_kind: %s\n", e.MediaKind)
		fmt.Fprintf(b, "analysis_status: %s\n", e.AnalysisStatus)
		if e.ProvenanceState != "" {
			fmt.Fprintf(b, "provenance_state: %s\n", e.ProvenanceState)
		}
		if m := item.Manifest; m != nil {
			fmt.Fprintf(b, "manifest: present=%t verified=%t", m.Present, m.Verified)
			if m.BrokenReason != "" {
				fmt.Fprintf(b, " broken_reason=%s", m.BrokenReason)
			}
			b.WriteByte('\n')
			for _, a := range m.Assertions {
				fmt.Fprintf(b, "assertion: %s=%s\n", a.Label, a.Value)
			}
		}
		if score := item.Score; score != nil {
			fmt.Fprintf(b, "trust_score: %d/100 (%s) v%d\n", score.Score, score.Band, score.Version)
			fmt.Fprintf(b, "rationale: %s\n", score.Rationale)
			for i, r := range score.TopReasons {
				fmt.Fprintf(b, "reason[%d]: %s: %s\n", i+1, r.Code, r.Message)
			}
		}
	}

	fmt.Fprintf(b, "\n[custody ledger]\n")
	for _, event := range s.Ledger {
		fmt.Fprintf(b, "%d %s %s actor=%s payload=%s hash=%s\n",
			event.Seq,
			event.CreatedAt.UTC().Format(time.RFC3339Nano),
			event.EventType,
			event.Actor,
			event.PayloadHash,
			event.EventHash,
		)
	}
	return b.String()
}
