package voting

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxNameLength = 190

// CategoryName represents a validated category name.
type CategoryName string

// NewCategoryName trims surrounding whitespace and rejects names a store could not hold.
func NewCategoryName(rawInput string) (CategoryName, error) {
	trimmed, err := validateName("category", rawInput)
	if err != nil {
		return "", err
	}
	return CategoryName(trimmed), nil
}

// String returns the underlying name.
func (name CategoryName) String() string {
	return string(name)
}

// CompetitorName represents a validated competitor name.
type CompetitorName string

// NewCompetitorName trims surrounding whitespace and rejects names a store could not hold.
func NewCompetitorName(rawInput string) (CompetitorName, error) {
	trimmed, err := validateName("competitor", rawInput)
	if err != nil {
		return "", err
	}
	return CompetitorName(trimmed), nil
}

// String returns the underlying name.
func (name CompetitorName) String() string {
	return string(name)
}

func validateName(entity, rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%s name is empty", entity)
	}
	if !utf8.ValidString(trimmed) {
		return "", fmt.Errorf("%s name is not valid UTF-8", entity)
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", fmt.Errorf("%s name exceeds %d characters", entity, maxNameLength)
	}
	return trimmed, nil
}

// Category groups the competitors voted on together.
type Category struct {
	ID          uint         `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string       `gorm:"column:name;size:190;not null;uniqueIndex:idx_categories_name"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	Competitors []Competitor `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}

// Competitor is a nominee owned by exactly one category.
type Competitor struct {
	ID         uint       `gorm:"column:id;primaryKey;autoIncrement"`
	CategoryID uint       `gorm:"column:category_id;not null;uniqueIndex:idx_competitors_category_name,priority:1"`
	Name       string     `gorm:"column:name;size:190;not null;uniqueIndex:idx_competitors_category_name,priority:2"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	Tally      *VoteTally `gorm:"foreignKey:CompetitorID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Competitor) TableName() string {
	return "competitors"
}

// VoteTally holds the running vote count of one competitor.
type VoteTally struct {
	ID           uint  `gorm:"column:id;primaryKey;autoIncrement"`
	CompetitorID uint  `gorm:"column:competitor_id;not null;uniqueIndex:idx_vote_tallies_competitor"`
	Votes        int64 `gorm:"column:votes;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (VoteTally) TableName() string {
	return "vote_tallies"
}

// TallyRow pairs a competitor name with its current vote count.
type TallyRow struct {
	Competitor string `gorm:"column:competitor"`
	Votes      int64  `gorm:"column:votes"`
}
