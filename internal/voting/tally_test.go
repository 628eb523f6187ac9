package voting

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestGetTalliesRanksByVotesThenName(t *testing.T) {
	repository, engine, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateCategory(t, repository, "Music")
	for _, name := range []string{"Charlie", "Bravo", "Alpha", "Delta"} {
		mustCreateCompetitor(t, repository, "Music", name)
	}
	mustCastVotes(t, repository, "Music", "Charlie", 2)
	mustCastVotes(t, repository, "Music", "Bravo", 2)
	mustCastVotes(t, repository, "Music", "Delta", 5)

	tallies, err := engine.GetTallies(ctx, "Music")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []TallyRow{
		{Competitor: "Delta", Votes: 5},
		{Competitor: "Bravo", Votes: 2},
		{Competitor: "Charlie", Votes: 2},
		{Competitor: "Alpha", Votes: 0},
	}
	if !reflect.DeepEqual(tallies, expected) {
		t.Fatalf("expected %v, got %v", expected, tallies)
	}
}

func TestGetTalliesUnknownCategoryIsEmpty(t *testing.T) {
	_, engine, _ := newTestServices(t)

	tallies, err := engine.GetTallies(context.Background(), "Unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tallies == nil || len(tallies) != 0 {
		t.Fatalf("expected empty non-nil tallies, got %#v", tallies)
	}
}

func TestGetTalliesRejectsEmptyCategory(t *testing.T) {
	_, engine, _ := newTestServices(t)

	if _, err := engine.GetTallies(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := engine.GetWinner(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetWinnerBreaksTiesLexically(t *testing.T) {
	repository, engine, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateCategory(t, repository, "Sports")
	mustCreateCompetitor(t, repository, "Sports", "B")
	mustCreateCompetitor(t, repository, "Sports", "A")
	mustCastVotes(t, repository, "Sports", "B", 3)
	mustCastVotes(t, repository, "Sports", "A", 3)

	for attempt := 0; attempt < 5; attempt++ {
		winner, err := engine.GetWinner(ctx, "Sports")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if winner != (TallyRow{Competitor: "A", Votes: 3}) {
			t.Fatalf("expected A with 3 votes, got %#v", winner)
		}
	}
}

func TestGetWinnerWithoutCompetitors(t *testing.T) {
	repository, engine, _ := newTestServices(t)
	mustCreateCategory(t, repository, "Empty")

	tests := []string{"Empty", "Unknown"}
	for _, category := range tests {
		t.Run(category, func(t *testing.T) {
			_, err := engine.GetWinner(context.Background(), category)
			if !errors.Is(err, ErrNoCompetitors) {
				t.Fatalf("expected no competitors, got %v", err)
			}
			if ErrorCode(err) != "voting.get_winner.no_competitors" {
				t.Fatalf("unexpected code %q", ErrorCode(err))
			}
		})
	}
}

func TestMusicScenario(t *testing.T) {
	repository, engine, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateCategory(t, repository, "Music")
	mustCreateCompetitor(t, repository, "Music", "Band1")
	mustCreateCompetitor(t, repository, "Music", "Band2")
	mustCastVotes(t, repository, "Music", "Band1", 2)
	mustCastVotes(t, repository, "Music", "Band2", 1)

	tallies, err := engine.GetTallies(ctx, "Music")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []TallyRow{{Competitor: "Band1", Votes: 2}, {Competitor: "Band2", Votes: 1}}
	if !reflect.DeepEqual(tallies, expected) {
		t.Fatalf("expected %v, got %v", expected, tallies)
	}
	winner, err := engine.GetWinner(ctx, "Music")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.Competitor != "Band1" {
		t.Fatalf("expected Band1 to win, got %s", winner.Competitor)
	}

	if err := repository.DeleteCategory(ctx, "Music"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.GetWinner(ctx, "Music"); !errors.Is(err, ErrNoCompetitors) {
		t.Fatalf("expected no competitors after delete, got %v", err)
	}
	if _, err := repository.CastVote(ctx, "Music", "Band1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected vote after delete to fail with not found, got %v", err)
	}
}

func TestRankTalliesComparesNamesByteWise(t *testing.T) {
	rows := []TallyRow{
		{Competitor: "beta", Votes: 1},
		{Competitor: "Beta", Votes: 1},
		{Competitor: "alpha", Votes: 4},
		{Competitor: "Zulu", Votes: 1},
	}
	ranked := rankTallies(rows)
	expected := []string{"alpha", "Beta", "Zulu", "beta"}
	for index, name := range expected {
		if ranked[index].Competitor != name {
			t.Fatalf("expected order %v, got %v", expected, ranked)
		}
	}
}

func TestNewTallyEngineRequiresDatabase(t *testing.T) {
	_, err := NewTallyEngine(TallyEngineConfig{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}
