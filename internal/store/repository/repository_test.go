package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/store"
)

// setupTestDB connects to PICKEM_TEST_DATABASE_URL, resets the schema and
// applies migrations. Tests skip when the variable is unset.
func setupTestDB(t *testing.T) *store.Database {
	t.Helper()

	dsn := os.Getenv("PICKEM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PICKEM_TEST_DATABASE_URL not set")
	}

	db, err := store.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.DB().Exec(`
		DROP TABLE IF EXISTS picks, bet_options, games, teams, schema_migrations CASCADE;
		DROP TYPE IF EXISTS game_status, system_status, bet_type, bet_target, pick_status CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean database: %v", err)
	}

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// seedPick records a pending pick by a new user
func seedPick(t *testing.T, db *store.Database, betOptionID int) *store.Pick {
	t.Helper()

	pick := &store.Pick{}
	err := db.DB().QueryRow(`
		INSERT INTO picks (user_id, bet_option_id)
		VALUES ($1, $2)
		RETURNING id, user_id, bet_option_id, status
	`, uuid.New(), betOptionID).Scan(&pick.ID, &pick.UserID, &pick.BetOptionID, &pick.Status)
	if err != nil {
		t.Fatalf("seed pick: %v", err)
	}
	return pick
}

func seedTeams(t *testing.T, repo *TeamRepository, abbrs ...string) map[string]int {
	t.Helper()

	ids := make(map[string]int, len(abbrs))
	for _, abbr := range abbrs {
		id, err := repo.Upsert(context.Background(), &store.Team{
			Abbr:           abbr,
			Name:           abbr + " Team",
			Conference:     "American Football Conference",
			ConferenceAbbr: "AFC",
			Division:       "East",
		})
		if err != nil {
			t.Fatalf("seed team %s: %v", abbr, err)
		}
		ids[abbr] = id
	}
	return ids
}

func TestTeamUpsertKeepsLatestName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTeamRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &store.Team{Abbr: "WSH", Name: "Washington Redskins", Conference: "National Football Conference", ConferenceAbbr: "NFC", Division: "East"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, &store.Team{Abbr: "WSH", Name: "Washington Commanders", Conference: "National Football Conference", ConferenceAbbr: "NFC", Division: "East"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first != second {
		t.Errorf("upsert created a second row: ids %d and %d", first, second)
	}

	team, err := repo.GetByAbbr(ctx, "WSH")
	if err != nil {
		t.Fatalf("GetByAbbr: %v", err)
	}
	if team.Name != "Washington Commanders" {
		t.Errorf("name = %q, want %q", team.Name, "Washington Commanders")
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d teams, want 1", len(all))
	}
}

func TestTeamGetByAbbrNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTeamRepository(db)

	_, err := repo.GetByAbbr(context.Background(), "XXX")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGameUpsertKeepsCreationFields(t *testing.T) {
	db := setupTestDB(t)
	teams := seedTeams(t, NewTeamRepository(db), "KC", "BUF")
	repo := NewGameRepository(db)
	ctx := context.Background()

	kickoff := time.Date(2024, time.September, 8, 17, 0, 0, 0, time.UTC)
	id, err := repo.Upsert(ctx, store.GameUpsert{
		ExternalID: "20240908_BUF@KC",
		Year:       2024,
		Week:       1,
		Date:       sql.NullTime{Time: kickoff, Valid: true},
		HomeTeamID: teams["KC"],
		AwayTeamID: teams["BUF"],
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	completed := store.GameStatusCompleted
	home, away := 27, 24
	again, err := repo.Upsert(ctx, store.GameUpsert{
		ExternalID: "renamed-upstream-id",
		Year:       2024,
		Week:       1,
		Date:       sql.NullTime{Time: kickoff.Add(time.Hour), Valid: true},
		HomeTeamID: teams["KC"],
		AwayTeamID: teams["BUF"],
		Status:     &completed,
		HomeScore:  &home,
		AwayScore:  &away,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if again != id {
		t.Fatalf("upsert created a second row: ids %d and %d", id, again)
	}

	game, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if game.ExternalID != "20240908_BUF@KC" {
		t.Errorf("external_id = %q, want original", game.ExternalID)
	}
	if game.Status != store.GameStatusCompleted || game.HomeScore != 27 || game.AwayScore != 24 {
		t.Errorf("got status=%s score=%d-%d, want completed 27-24", game.Status, game.HomeScore, game.AwayScore)
	}
	if !game.Date.Time.Equal(kickoff.Add(time.Hour)) {
		t.Errorf("date = %v, want %v", game.Date.Time, kickoff.Add(time.Hour))
	}

	// A schedule resync carries no status or scores and must not reset them.
	if _, err := repo.Upsert(ctx, store.GameUpsert{
		ExternalID: "20240908_BUF@KC",
		Year:       2024,
		Week:       1,
		HomeTeamID: teams["KC"],
		AwayTeamID: teams["BUF"],
	}); err != nil {
		t.Fatalf("resync: %v", err)
	}
	game, _ = repo.GetByID(ctx, id)
	if game.Status != store.GameStatusCompleted || game.HomeScore != 27 {
		t.Errorf("resync reset status/score: %s %d", game.Status, game.HomeScore)
	}
	if game.Date.Valid {
		t.Errorf("date = %v, want unknown", game.Date.Time)
	}
}

func TestGameUpsertWeekIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	teams := seedTeams(t, NewTeamRepository(db), "KC", "BUF")
	repo := NewGameRepository(db)
	ctx := context.Background()

	err := repo.UpsertWeek(ctx, []store.GameUpsert{
		{ExternalID: "g1", Year: 2024, Week: 2, HomeTeamID: teams["KC"], AwayTeamID: teams["BUF"]},
		{ExternalID: "g2", Year: 2024, Week: 2, HomeTeamID: teams["KC"], AwayTeamID: 999999},
	})
	var perr *store.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}

	games, err := repo.GetGames(ctx, 2024, 2)
	if err != nil {
		t.Fatalf("GetGames: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("got %d games after failed batch, want 0", len(games))
	}
}

func TestBetOptionFirstInsertWins(t *testing.T) {
	db := setupTestDB(t)
	teams := seedTeams(t, NewTeamRepository(db), "KC", "BUF")
	gameID, err := NewGameRepository(db).Upsert(context.Background(), store.GameUpsert{
		ExternalID: "g1", Year: 2024, Week: 1, HomeTeamID: teams["KC"], AwayTeamID: teams["BUF"],
	})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}

	repo := NewBetOptionRepository(db)
	ctx := context.Background()

	inserted, err := repo.InsertIfAbsent(ctx, &store.BetOption{
		GameID: gameID, Type: store.BetTypeSpread, Target: store.BetTargetHome,
		Line: decimal.RequireFromString("-3.5"), Odds: -110,
	})
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	inserted, err = repo.InsertIfAbsent(ctx, &store.BetOption{
		GameID: gameID, Type: store.BetTypeSpread, Target: store.BetTargetHome,
		Line: decimal.RequireFromString("-4.5"), Odds: -105,
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Errorf("second insert reported a new row")
	}

	options, err := repo.GetByGame(ctx, gameID)
	if err != nil {
		t.Fatalf("GetByGame: %v", err)
	}
	if len(options) != 1 {
		t.Fatalf("got %d options, want 1", len(options))
	}
	if !options[0].Line.Equal(decimal.RequireFromString("-3.5")) || options[0].Odds != -110 {
		t.Errorf("got line=%s odds=%d, want -3.5 / -110", options[0].Line, options[0].Odds)
	}
}

func TestPickUpdateStatusesGuardsPending(t *testing.T) {
	db := setupTestDB(t)
	teams := seedTeams(t, NewTeamRepository(db), "KC", "BUF")
	ctx := context.Background()

	gameID, err := NewGameRepository(db).Upsert(ctx, store.GameUpsert{
		ExternalID: "g1", Year: 2024, Week: 1, HomeTeamID: teams["KC"], AwayTeamID: teams["BUF"],
	})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}
	opt := &store.BetOption{GameID: gameID, Type: store.BetTypeTotal, Target: store.BetTargetOver, Line: decimal.RequireFromString("44.5"), Odds: -110}
	if _, err := NewBetOptionRepository(db).InsertIfAbsent(ctx, opt); err != nil {
		t.Fatalf("seed option: %v", err)
	}

	repo := NewPickRepository(db)
	a := seedPick(t, db, opt.ID)
	b := seedPick(t, db, opt.ID)

	records, err := repo.GetWithGameAndOption(ctx, 2024, 1)
	if err != nil {
		t.Fatalf("GetWithGameAndOption: %v", err)
	}
	if len(records) != 2 || records[0].Game == nil || records[0].BetOption == nil {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := repo.UpdateStatuses(ctx, []store.PickTransition{{PickID: a.ID, Status: store.PickStatusWon}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	err = repo.UpdateStatuses(ctx, []store.PickTransition{
		{PickID: b.ID, Status: store.PickStatusLost},
		{PickID: a.ID, Status: store.PickStatusLost},
	})
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("err = %v, want ErrStaleTransition", err)
	}

	records, _ = repo.GetWithGameAndOption(ctx, 2024, 1)
	for _, rec := range records {
		switch rec.Pick.ID {
		case a.ID:
			if rec.Pick.Status != store.PickStatusWon {
				t.Errorf("pick a = %s, want won", rec.Pick.Status)
			}
		case b.ID:
			if rec.Pick.Status != store.PickStatusPending {
				t.Errorf("pick b = %s, want pending after rollback", rec.Pick.Status)
			}
		}
	}
}

func TestWriteGuardsRejectInconsistentRows(t *testing.T) {
	ctx := context.Background()

	opt := &store.BetOption{GameID: 1, Type: store.BetTypeSpread, Target: store.BetTargetOver, Line: decimal.RequireFromString("44.5"), Odds: -110}
	if _, err := NewBetOptionRepository(nil).InsertIfAbsent(ctx, opt); err == nil {
		t.Error("spread option with an over target was accepted")
	}

	bogus := store.GameStatus("cancelled")
	if _, err := upsertGame(ctx, nil, store.GameUpsert{ExternalID: "g1", Status: &bogus}); err == nil {
		t.Error("game with unknown status was accepted")
	}
}
