package voting

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// store bundles the database handle and logger shared by the Repository and TallyEngine.
type store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func (s *store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

// session returns a context-bound handle, or a StoreUnavailable error when none is configured.
func (s *store) session(ctx context.Context, operation string) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		err := newServiceError(operation, "missing_database", ErrStoreUnavailable, errMissingDatabase.Error())
		logServiceError(s.loggerOrDefault(), err, nil)
		return nil, err
	}
	return s.db.WithContext(ctx), nil
}

func (s *store) storeFailure(operation, reason string, cause error, fields ...zap.Field) error {
	err := translateStoreError(operation, reason, cause)
	logServiceError(s.loggerOrDefault(), err, cause, fields...)
	return err
}

func (s *store) reject(operation, reason string, kind error, message string, fields ...zap.Field) error {
	err := newServiceError(operation, reason, kind, message)
	logServiceError(s.loggerOrDefault(), err, nil, fields...)
	return err
}

func (s *store) finish(operation string, txErr error, fields ...zap.Field) error {
	if txErr == nil {
		return nil
	}
	var serviceErr *ServiceError
	if errors.As(txErr, &serviceErr) {
		return serviceErr
	}
	err := finishTransaction(operation, txErr)
	logServiceError(s.loggerOrDefault(), err, txErr, fields...)
	return err
}

// competitorLookup selects the id of the competitor named competitorName inside categoryName.
func competitorLookup(tx *gorm.DB, category CategoryName, competitor CompetitorName) *gorm.DB {
	return tx.Model(&Competitor{}).
		Select("competitors.id").
		Joins("JOIN categories ON categories.id = competitors.category_id").
		Where("categories.name = ? AND competitors.name = ?", category.String(), competitor.String())
}
