package voting

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrStoreUnavailable indicates the persistent store could not serve the operation.
	ErrStoreUnavailable = errors.New("voting: store unavailable")
	// ErrInvalidInput indicates an empty or malformed name; rejected before any store access.
	ErrInvalidInput = errors.New("voting: invalid input")
	// ErrDuplicateName indicates a uniqueness violation within the name's scope.
	ErrDuplicateName = errors.New("voting: duplicate name")
	// ErrNotFound indicates the referenced category or competitor does not exist.
	ErrNotFound = errors.New("voting: not found")
	// ErrNoCompetitors indicates a tally was requested for a category without competitors.
	ErrNoCompetitors = errors.New("voting: no competitors")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a dotted operation code, a human readable message and one of the
// error kinds above. Store driver errors are logged, never wrapped.
type ServiceError struct {
	code    string
	message string
	kind    error
}

func (e *ServiceError) Error() string {
	if e.message == "" {
		return e.code
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the error kind so errors.Is works against the sentinels.
func (e *ServiceError) Unwrap() error {
	return e.kind
}

// Code returns the dotted operation code, e.g. voting.create_category.duplicate_name.
func (e *ServiceError) Code() string {
	return e.code
}

// Message returns the human readable description.
func (e *ServiceError) Message() string {
	return e.message
}

// Kind returns the error kind sentinel.
func (e *ServiceError) Kind() error {
	return e.kind
}

const (
	opNewRepository    = "voting.repository.new"
	opNewTallyEngine   = "voting.tally_engine.new"
	opCreateCategory   = "voting.create_category"
	opDeleteCategory   = "voting.delete_category"
	opListCategories   = "voting.list_categories"
	opCreateCompetitor = "voting.create_competitor"
	opDeleteCompetitor = "voting.delete_competitor"
	opListCompetitors  = "voting.list_competitors"
	opCastVote         = "voting.cast_vote"
	opGetTallies       = "voting.get_tallies"
	opGetWinner        = "voting.get_winner"
)

func newServiceError(operation, reason string, kind error, message string) *ServiceError {
	return &ServiceError{
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
		kind:    kind,
	}
}

// IsWarning reports whether err rejected an operation without failing it: the state is
// unchanged and the caller should surface a notice rather than an error.
func IsWarning(err error) bool {
	return errors.Is(err, ErrDuplicateName) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoCompetitors)
}

// ErrorCode returns the ServiceError code carried by err, or an empty string.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// ErrorMessage returns the human readable message carried by err.
func ErrorMessage(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message() != "" {
		return serviceErr.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// translateStoreError maps a gorm/driver error onto an error kind.
func translateStoreError(operation, reason string, err error) *ServiceError {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newServiceError(operation, "duplicate_name", ErrDuplicateName, "name already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newServiceError(operation, "not_found", ErrNotFound, "record not found")
	default:
		return newServiceError(operation, reason, ErrStoreUnavailable, "store unavailable")
	}
}

// finishTransaction keeps ServiceErrors returned from inside a transaction callback and
// translates anything else (begin/commit failures).
func finishTransaction(operation string, err error) error {
	if err == nil {
		return nil
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return translateStoreError(operation, "transaction_failed", err)
}

func logServiceError(logger *zap.Logger, err error, cause error, fields ...zap.Field) {
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		return
	}
	attrs := []zap.Field{zap.String("code", serviceErr.Code())}
	if cause != nil {
		attrs = append(attrs, zap.Error(cause))
	}
	attrs = append(attrs, fields...)
	if IsWarning(serviceErr) || errors.Is(serviceErr, ErrInvalidInput) {
		logger.Warn("voting operation rejected", attrs...)
		return
	}
	logger.Error("voting service error", attrs...)
}
