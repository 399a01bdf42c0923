package db

import (
	"fmt"

	"truthsig/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

// Migrate creates or updates the schema. The custody seq table is raw
// SQL because the append path addresses it with FOR UPDATE and gorm has
// no model for it.
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(
		&CaseModel{},
		&EvidenceModel{},
		&TrustScoreModel{},
		&AnalysisResultModel{},
		&CustodyEventModel{},
		&ArtifactModel{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	if err := s.DB.Exec(
		"CREATE TABLE IF NOT EXISTS case_custody_seq (case_id uuid PRIMARY KEY, seq bigint NOT NULL)",
	).Error; err != nil {
		return fmt.Errorf("migrate custody seq: %w", err)
	}
	return nil
}
