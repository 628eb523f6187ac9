package voting

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var testNameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// newTestDatabase opens a private in-memory database with the voting schema. A single
// connection keeps the shared in-memory database alive and serializes writers.
func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", testNameReplacer.Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&Category{}, &Competitor{}, &VoteTally{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestServices(t *testing.T) (*Repository, *TallyEngine, *gorm.DB) {
	t.Helper()
	db := newTestDatabase(t)
	repository, err := NewRepository(RepositoryConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	engine, err := NewTallyEngine(TallyEngineConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to create tally engine: %v", err)
	}
	return repository, engine, db
}

func mustCreateCategory(t *testing.T, repository *Repository, name string) Category {
	t.Helper()
	category, err := repository.CreateCategory(context.Background(), name)
	if err != nil {
		t.Fatalf("failed to create category %q: %v", name, err)
	}
	return category
}

func mustCreateCompetitor(t *testing.T, repository *Repository, category, name string) Competitor {
	t.Helper()
	competitor, err := repository.CreateCompetitor(context.Background(), category, name)
	if err != nil {
		t.Fatalf("failed to create competitor %q in %q: %v", name, category, err)
	}
	return competitor
}

func mustCastVotes(t *testing.T, repository *Repository, category, competitor string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		if _, err := repository.CastVote(context.Background(), category, competitor); err != nil {
			t.Fatalf("failed to cast vote %d for %q: %v", i, competitor, err)
		}
	}
}

func competitorNames(competitors []Competitor) []string {
	names := make([]string, 0, len(competitors))
	for _, competitor := range competitors {
		names = append(names, competitor.Name)
	}
	return names
}
