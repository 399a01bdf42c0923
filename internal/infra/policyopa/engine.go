package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"truthsig/internal/domain"
	"truthsig/internal/usecase"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.truthsig.policy.result"

// Engine evaluates a Rego bundle to decide whether a compiled report may
// be released. The bundle exports data.truthsig.policy.result as
// {"allow": bool, "deny": [{"code": ..., "message": ...}]}.
type Engine struct {
	query rego.PreparedEvalQuery
}

type policyResult struct {
	Allow bool         `json:"allow"`
	Deny  []denyReason `json:"deny"`
}

type denyReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare report policy: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// Authorize implements usecase.ReleasePolicy.
func (e *Engine) Authorize(ctx context.Context, snapshot usecase.ReportSnapshot) error {
	if e == nil {
		return nil
	}
	input := buildInput(snapshot)
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return errors.New("empty report policy result")
	}
	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return err
	}
	var result policyResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	if result.Allow {
		return nil
	}
	if len(result.Deny) > 0 {
		return fmt.Errorf("%w: %s: %s", domain.ErrPolicyDenied, result.Deny[0].Code, result.Deny[0].Message)
	}
	return fmt.Errorf("%w: report release denied", domain.ErrPolicyDenied)
}

func buildInput(snapshot usecase.ReportSnapshot) map[string]any {
	items := make([]map[string]any, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		entry := map[string]any{
			"evidence_id":      item.Evidence.ID,
			"analysis_status":  string(item.Evidence.AnalysisStatus),
			"provenance_state": string(item.Evidence.ProvenanceState),
		}
		if item.Score != nil {
			entry["score"] = item.Score.Score
			entry["band"] = string(item.Score.Band)
		}
		items = append(items, entry)
	}
	return map[string]any{
		"case_id":      snapshot.Case.ID,
		"case_status":  string(snapshot.Case.Status),
		"payload_hash": snapshot.PayloadHash,
		"items":        items,
	}
}
