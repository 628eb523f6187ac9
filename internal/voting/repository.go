package voting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryConfig describes the dependencies required by the Repository.
type RepositoryConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Repository manages categories, competitors and their vote tallies.
type Repository struct {
	store
}

// NewRepository validates the configuration and constructs a Repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opNewRepository, "missing_database", ErrStoreUnavailable, errMissingDatabase.Error())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Repository{store: store{db: cfg.Database, logger: logger}}, nil
}

// CreateCategory creates a category with no competitors.
func (r *Repository) CreateCategory(ctx context.Context, rawName string) (Category, error) {
	name, err := NewCategoryName(rawName)
	if err != nil {
		return Category{}, r.reject(opCreateCategory, "invalid_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opCreateCategory)
	if err != nil {
		return Category{}, err
	}
	fields := []zap.Field{zap.String("category", name.String())}

	var created Category
	txErr := db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Category{}).Where("name = ?", name.String()).Count(&existing).Error; err != nil {
			return r.storeFailure(opCreateCategory, "category_select_failed", err, fields...)
		}
		if existing > 0 {
			return r.reject(opCreateCategory, "duplicate_name", ErrDuplicateName,
				fmt.Sprintf("category %q already exists", name), fields...)
		}
		created = Category{Name: name.String()}
		if err := tx.Create(&created).Error; err != nil {
			return r.storeFailure(opCreateCategory, "category_insert_failed", err, fields...)
		}
		return nil
	})
	if txErr != nil {
		return Category{}, r.finish(opCreateCategory, txErr, fields...)
	}
	return created, nil
}

// DeleteCategory removes the category together with its competitors and their tallies.
func (r *Repository) DeleteCategory(ctx context.Context, rawName string) error {
	name, err := NewCategoryName(rawName)
	if err != nil {
		return r.reject(opDeleteCategory, "invalid_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opDeleteCategory)
	if err != nil {
		return err
	}
	fields := []zap.Field{zap.String("category", name.String())}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		var category Category
		err := tx.Where("name = ?", name.String()).Take(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.reject(opDeleteCategory, "not_found", ErrNotFound,
				fmt.Sprintf("category %q does not exist", name), fields...)
		}
		if err != nil {
			return r.storeFailure(opDeleteCategory, "category_select_failed", err, fields...)
		}

		owned := tx.Model(&Competitor{}).Select("id").Where("category_id = ?", category.ID)
		if err := tx.Where("competitor_id IN (?)", owned).Delete(&VoteTally{}).Error; err != nil {
			return r.storeFailure(opDeleteCategory, "tally_delete_failed", err, fields...)
		}
		if err := tx.Where("category_id = ?", category.ID).Delete(&Competitor{}).Error; err != nil {
			return r.storeFailure(opDeleteCategory, "competitor_delete_failed", err, fields...)
		}
		if err := tx.Delete(&Category{}, category.ID).Error; err != nil {
			return r.storeFailure(opDeleteCategory, "category_delete_failed", err, fields...)
		}
		return nil
	})
	return r.finish(opDeleteCategory, txErr, fields...)
}

// ListCategories returns every category in insertion order.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	db, err := r.session(ctx, opListCategories)
	if err != nil {
		return nil, err
	}
	var categories []Category
	if err := db.Order("id ASC").Find(&categories).Error; err != nil {
		return nil, r.storeFailure(opListCategories, "query_failed", err)
	}
	return categories, nil
}

// CreateCompetitor adds a competitor to the category together with its zero vote tally.
func (r *Repository) CreateCompetitor(ctx context.Context, rawCategory, rawCompetitor string) (Competitor, error) {
	categoryName, err := NewCategoryName(rawCategory)
	if err != nil {
		return Competitor{}, r.reject(opCreateCompetitor, "invalid_category_name", ErrInvalidInput, err.Error())
	}
	competitorName, err := NewCompetitorName(rawCompetitor)
	if err != nil {
		return Competitor{}, r.reject(opCreateCompetitor, "invalid_competitor_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opCreateCompetitor)
	if err != nil {
		return Competitor{}, err
	}
	fields := []zap.Field{
		zap.String("category", categoryName.String()),
		zap.String("competitor", competitorName.String()),
	}

	var created Competitor
	txErr := db.Transaction(func(tx *gorm.DB) error {
		var category Category
		err := tx.Where("name = ?", categoryName.String()).Take(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.reject(opCreateCompetitor, "category_not_found", ErrNotFound,
				fmt.Sprintf("category %q does not exist", categoryName), fields...)
		}
		if err != nil {
			return r.storeFailure(opCreateCompetitor, "category_select_failed", err, fields...)
		}

		var existing int64
		if err := tx.Model(&Competitor{}).
			Where("category_id = ? AND name = ?", category.ID, competitorName.String()).
			Count(&existing).Error; err != nil {
			return r.storeFailure(opCreateCompetitor, "competitor_select_failed", err, fields...)
		}
		if existing > 0 {
			return r.reject(opCreateCompetitor, "duplicate_name", ErrDuplicateName,
				fmt.Sprintf("competitor %q already exists in category %q", competitorName, categoryName), fields...)
		}

		created = Competitor{CategoryID: category.ID, Name: competitorName.String()}
		if err := tx.Create(&created).Error; err != nil {
			return r.storeFailure(opCreateCompetitor, "competitor_insert_failed", err, fields...)
		}
		tally := VoteTally{CompetitorID: created.ID, Votes: 0}
		if err := tx.Create(&tally).Error; err != nil {
			return r.storeFailure(opCreateCompetitor, "tally_insert_failed", err, fields...)
		}
		created.Tally = &tally
		return nil
	})
	if txErr != nil {
		return Competitor{}, r.finish(opCreateCompetitor, txErr, fields...)
	}
	return created, nil
}

// DeleteCompetitor removes the competitor and its vote tally.
func (r *Repository) DeleteCompetitor(ctx context.Context, rawCategory, rawCompetitor string) error {
	categoryName, err := NewCategoryName(rawCategory)
	if err != nil {
		return r.reject(opDeleteCompetitor, "invalid_category_name", ErrInvalidInput, err.Error())
	}
	competitorName, err := NewCompetitorName(rawCompetitor)
	if err != nil {
		return r.reject(opDeleteCompetitor, "invalid_competitor_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opDeleteCompetitor)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("category", categoryName.String()),
		zap.String("competitor", competitorName.String()),
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		var competitorIDs []uint
		if err := competitorLookup(tx, categoryName, competitorName).Pluck("competitors.id", &competitorIDs).Error; err != nil {
			return r.storeFailure(opDeleteCompetitor, "competitor_select_failed", err, fields...)
		}
		if len(competitorIDs) == 0 {
			return r.reject(opDeleteCompetitor, "not_found", ErrNotFound,
				fmt.Sprintf("competitor %q does not exist in category %q", competitorName, categoryName), fields...)
		}
		if err := tx.Where("competitor_id IN ?", competitorIDs).Delete(&VoteTally{}).Error; err != nil {
			return r.storeFailure(opDeleteCompetitor, "tally_delete_failed", err, fields...)
		}
		if err := tx.Delete(&Competitor{}, competitorIDs).Error; err != nil {
			return r.storeFailure(opDeleteCompetitor, "competitor_delete_failed", err, fields...)
		}
		return nil
	})
	return r.finish(opDeleteCompetitor, txErr, fields...)
}

// ListCompetitors returns the competitors of the category in insertion order. A missing
// category yields an empty slice.
func (r *Repository) ListCompetitors(ctx context.Context, rawCategory string) ([]Competitor, error) {
	categoryName, err := NewCategoryName(rawCategory)
	if err != nil {
		return nil, r.reject(opListCompetitors, "invalid_category_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opListCompetitors)
	if err != nil {
		return nil, err
	}
	competitors := []Competitor{}
	if err := db.
		Joins("JOIN categories ON categories.id = competitors.category_id").
		Where("categories.name = ?", categoryName.String()).
		Order("competitors.id ASC").
		Find(&competitors).Error; err != nil {
		return nil, r.storeFailure(opListCompetitors, "query_failed", err, zap.String("category", categoryName.String()))
	}
	return competitors, nil
}

// CastVote increments the competitor's tally by exactly one and returns the updated row.
// The increment is evaluated by the store, so concurrent votes never overwrite each other.
func (r *Repository) CastVote(ctx context.Context, rawCategory, rawCompetitor string) (TallyRow, error) {
	categoryName, err := NewCategoryName(rawCategory)
	if err != nil {
		return TallyRow{}, r.reject(opCastVote, "invalid_category_name", ErrInvalidInput, err.Error())
	}
	competitorName, err := NewCompetitorName(rawCompetitor)
	if err != nil {
		return TallyRow{}, r.reject(opCastVote, "invalid_competitor_name", ErrInvalidInput, err.Error())
	}
	db, err := r.session(ctx, opCastVote)
	if err != nil {
		return TallyRow{}, err
	}
	fields := []zap.Field{
		zap.String("category", categoryName.String()),
		zap.String("competitor", competitorName.String()),
	}

	row := TallyRow{Competitor: competitorName.String()}
	txErr := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&VoteTally{}).
			Where("competitor_id = (?)", competitorLookup(tx, categoryName, competitorName)).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1))
		if result.Error != nil {
			return r.storeFailure(opCastVote, "tally_update_failed", result.Error, fields...)
		}
		if result.RowsAffected == 0 {
			return r.reject(opCastVote, "not_found", ErrNotFound,
				fmt.Sprintf("competitor %q does not exist in category %q", competitorName, categoryName), fields...)
		}

		var tally VoteTally
		if err := tx.Where("competitor_id = (?)", competitorLookup(tx, categoryName, competitorName)).
			Take(&tally).Error; err != nil {
			return r.storeFailure(opCastVote, "tally_select_failed", err, fields...)
		}
		row.Votes = tally.Votes
		return nil
	})
	if txErr != nil {
		return TallyRow{}, r.finish(opCastVote, txErr, fields...)
	}
	r.loggerOrDefault().Debug("vote cast", append(fields, zap.Int64("votes", row.Votes))...)
	return row, nil
}
