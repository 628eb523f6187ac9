package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/voting"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillVoteTallies = "2026-10-19_backfill_vote_tallies"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

var migrations = []migrationDefinition{
	{name: migrationBackfillVoteTallies, apply: backfillVoteTallies},
}

// EnsureSchema creates the categories, competitors and vote_tallies tables with their
// cascade foreign keys when absent, then applies pending data migrations. Calling it on
// an up-to-date schema changes nothing.
func EnsureSchema(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if db == nil {
		return fmt.Errorf("%w: database handle is required", voting.ErrStoreUnavailable)
	}
	if err := db.AutoMigrate(&voting.Category{}, &voting.Competitor{}, &voting.VoteTally{}, &migrationRecord{}); err != nil {
		logger.Error("schema migration failed", zap.Error(err))
		return fmt.Errorf("%w: ensure schema: %v", voting.ErrStoreUnavailable, err)
	}
	if err := applyMigrations(db, logger); err != nil {
		logger.Error("data migration failed", zap.Error(err))
		return fmt.Errorf("%w: apply migrations: %v", voting.ErrStoreUnavailable, err)
	}
	return nil
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// backfillVoteTallies gives every competitor lacking a tally a zero count.
func backfillVoteTallies(db *gorm.DB) error {
	return db.Exec(`INSERT INTO vote_tallies (competitor_id, votes)
		SELECT competitors.id, 0 FROM competitors
		LEFT JOIN vote_tallies ON vote_tallies.competitor_id = competitors.id
		WHERE vote_tallies.id IS NULL`).Error
}
