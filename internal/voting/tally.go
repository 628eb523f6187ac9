package voting

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TallyEngineConfig describes the dependencies required by the TallyEngine.
type TallyEngineConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// TallyEngine aggregates vote counts per category and ranks competitors.
type TallyEngine struct {
	store
}

// NewTallyEngine validates the configuration and constructs a TallyEngine.
func NewTallyEngine(cfg TallyEngineConfig) (*TallyEngine, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opNewTallyEngine, "missing_database", ErrStoreUnavailable, errMissingDatabase.Error())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &TallyEngine{store: store{db: cfg.Database, logger: logger}}, nil
}

// GetTallies returns every competitor of the category with its vote count, ranked by
// votes descending and then by name ascending. A category without competitors, or an
// unknown category, yields an empty slice.
func (e *TallyEngine) GetTallies(ctx context.Context, rawCategory string) ([]TallyRow, error) {
	return e.tallies(ctx, opGetTallies, rawCategory)
}

// GetWinner returns the highest ranked tally row. Ties resolve to the lexically smallest
// competitor name.
func (e *TallyEngine) GetWinner(ctx context.Context, rawCategory string) (TallyRow, error) {
	rows, err := e.tallies(ctx, opGetWinner, rawCategory)
	if err != nil {
		return TallyRow{}, err
	}
	if len(rows) == 0 {
		return TallyRow{}, e.reject(opGetWinner, "no_competitors", ErrNoCompetitors,
			fmt.Sprintf("category %q has no competitors", rawCategory),
			zap.String("category", rawCategory))
	}
	return rows[0], nil
}

func (e *TallyEngine) tallies(ctx context.Context, operation, rawCategory string) ([]TallyRow, error) {
	categoryName, err := NewCategoryName(rawCategory)
	if err != nil {
		return nil, e.reject(operation, "invalid_category_name", ErrInvalidInput, err.Error())
	}
	db, err := e.session(ctx, operation)
	if err != nil {
		return nil, err
	}

	rows := []TallyRow{}
	if err := db.Model(&Competitor{}).
		Select("competitors.name AS competitor, COALESCE(vote_tallies.votes, 0) AS votes").
		Joins("JOIN categories ON categories.id = competitors.category_id").
		Joins("LEFT JOIN vote_tallies ON vote_tallies.competitor_id = competitors.id").
		Where("categories.name = ?", categoryName.String()).
		Order("votes DESC").
		Order("competitors.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, e.storeFailure(operation, "query_failed", err, zap.String("category", categoryName.String()))
	}
	return rankTallies(rows), nil
}

// rankTallies orders rows by votes descending and competitor name ascending, comparing
// names byte-wise so the ranking does not depend on the store's collation.
func rankTallies(rows []TallyRow) []TallyRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Votes != rows[j].Votes {
			return rows[i].Votes > rows[j].Votes
		}
		return rows[i].Competitor < rows[j].Competitor
	})
	return rows
}
