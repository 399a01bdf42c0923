package db

import "time"

type CaseModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CaseModel) TableName() string { return "cases" }

type EvidenceModel struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	CaseID          string    `gorm:"type:uuid;index;not null;uniqueIndex:uniq_case_digest,priority:1"`
	Filename        string    `gorm:"not null"`
	Digest          string    `gorm:"index;not null;uniqueIndex:uniq_case_digest,priority:2"`
	SizeBytes       int64     `gorm:"not null"`
	MediaKind       string    `gorm:"not null"`
	AnalysisStatus  string    `gorm:"index;not null"`
	Retryable       bool      `gorm:"not null;default:false"`
	FailureCode     *string
	ProvenanceState *string
	TrustScoreID    *string   `gorm:"type:uuid"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (EvidenceModel) TableName() string { return "evidence" }

// TrustScoreModel rows are immutable and versioned: re-analysis inserts
// a new row rather than updating the previous one.
type TrustScoreModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	EvidenceID     string    `gorm:"type:uuid;index;not null"`
	EngineVersion  string    `gorm:"not null"`
	Revision       int       `gorm:"not null"`
	Score          int       `gorm:"not null"`
	Band           string    `gorm:"not null"`
	Rationale      string    `gorm:"not null"`
	TopReasonsJSON []byte    `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (TrustScoreModel) TableName() string { return "trust_scores" }

type AnalysisResultModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	EvidenceID   string    `gorm:"type:uuid;index;not null"`
	TrustScoreID string    `gorm:"type:uuid;not null"`
	ManifestJSON []byte    `gorm:"type:jsonb;not null"`
	ForensicJSON []byte    `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (AnalysisResultModel) TableName() string { return "analysis_results" }

type CustodyEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	CaseID        string    `gorm:"type:uuid;not null;uniqueIndex:uniq_case_seq,priority:1"`
	Seq           int64     `gorm:"not null;uniqueIndex:uniq_case_seq,priority:2"`
	EventType     string    `gorm:"not null"`
	Actor         string    `gorm:"not null"`
	// bytea, not jsonb: the payload hash covers the exact bytes and jsonb
	// would re-serialize them.
	PayloadJSON   []byte    `gorm:"type:bytea;not null"`
	PayloadHash   string    `gorm:"not null"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (CustodyEventModel) TableName() string { return "custody_events" }

type ArtifactModel struct {
	ID         int64     `gorm:"primaryKey"`
	EvidenceID string    `gorm:"type:uuid;not null;uniqueIndex:uniq_artifact,priority:1"`
	Kind       string    `gorm:"not null;uniqueIndex:uniq_artifact,priority:2"`
	FrameIndex int       `gorm:"not null;uniqueIndex:uniq_artifact,priority:3"`
	Digest     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (ArtifactModel) TableName() string { return "artifacts" }
