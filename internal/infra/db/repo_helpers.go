package db

import (
	"errors"
	"fmt"

	"truthsig/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errDBUnavailable = errors.New("db unavailable")

// Re-analysis rewrites the artifact slot for a (evidence, kind, index)
// triple instead of accumulating stale rows.
func onConflictUpdateDigest() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "evidence_id"}, {Name: "kind"}, {Name: "frame_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"digest", "created_at"}),
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, what, id)
	}
	return err
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
