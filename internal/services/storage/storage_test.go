package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/middleware"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/ai-assistant-tgbot-go/pkg/logger"
)

func newTestManager(t *testing.T) (*Manager, *SQLStorage) {
	t.Helper()
	log := logger.NewDiscardLogger()

	s, err := Open(&config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, log)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewManagerWithStorage(s, middleware.NewMetrics()), s
}

func countUsers(t *testing.T, s *SQLStorage) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func TestUpsertUserIsIdempotent(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	user := &models.User{ID: 42, Username: "alice", FirstName: "Alice"}
	if err := m.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	user.Username = "alice2"
	if err := m.UpsertUser(ctx, user); err != nil {
		t.Fatalf("second UpsertUser error: %v", err)
	}

	if n := countUsers(t, s); n != 1 {
		t.Fatalf("expected exactly one user row, got %d", n)
	}
	var username string
	s.db.QueryRow("SELECT username FROM users WHERE telegram_id = 42").Scan(&username)
	if username != "alice2" {
		t.Fatalf("expected profile to be refreshed, got %q", username)
	}
}

func TestTouchUserRegistersUnknownUser(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	if err := m.TouchUser(ctx, &models.User{ID: 7, FirstName: "Bob"}); err != nil {
		t.Fatalf("TouchUser error: %v", err)
	}
	if n := countUsers(t, s); n != 1 {
		t.Fatalf("expected user to be created, got %d rows", n)
	}

	before := time.Now().UTC().Add(-time.Second)
	if err := m.TouchUser(ctx, &models.User{ID: 7}); err != nil {
		t.Fatalf("TouchUser error: %v", err)
	}
	var lastActive time.Time
	if err := s.db.QueryRow("SELECT last_active FROM users WHERE telegram_id = 7").Scan(&lastActive); err != nil {
		t.Fatalf("scan last_active: %v", err)
	}
	if lastActive.Before(before) {
		t.Fatalf("last_active not refreshed: %v", lastActive)
	}
	if n := countUsers(t, s); n != 1 {
		t.Fatalf("expected one row after touch, got %d", n)
	}
}

func TestTouchUserUsesMessageTime(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	sent := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := m.TouchUser(ctx, &models.User{ID: 8, LastActive: sent}); err != nil {
		t.Fatalf("TouchUser error: %v", err)
	}
	var lastActive time.Time
	if err := s.db.QueryRow("SELECT last_active FROM users WHERE telegram_id = 8").Scan(&lastActive); err != nil {
		t.Fatalf("scan last_active: %v", err)
	}
	if !lastActive.Equal(sent) {
		t.Fatalf("expected last_active %v, got %v", sent, lastActive)
	}
}

func TestRecentTurnsNewestFirstAndLimited(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 1; i <= 12; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleAssistant
		}
		if err := m.AppendTurn(ctx, 1, role, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("AppendTurn error: %v", err)
		}
	}
	m.AppendTurn(ctx, 2, models.RoleUser, "other user")

	turns, err := m.RecentTurns(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentTurns error: %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}
	if turns[0].Content != "m12" || turns[9].Content != "m3" {
		t.Fatalf("unexpected order: first %q last %q", turns[0].Content, turns[9].Content)
	}
	if turns[0].Role != models.RoleAssistant || turns[0].UserID != 1 {
		t.Fatalf("unexpected turn %+v", turns[0])
	}
	for _, turn := range turns {
		if turn.Content == "other user" {
			t.Fatalf("turns of another user leaked into history")
		}
	}
}

func TestRecentTurnsSameTimestampFallsBackToInsertOrder(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	m.AppendTurn(ctx, 1, models.RoleUser, "question")
	m.AppendTurn(ctx, 1, models.RoleAssistant, "answer")

	turns, err := m.RecentTurns(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentTurns error: %v", err)
	}
	if len(turns) != 2 || turns[0].Content != "answer" || turns[1].Content != "question" {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestDeleteTurns(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.AppendTurn(ctx, 1, models.RoleUser, "a")
	m.AppendTurn(ctx, 2, models.RoleUser, "b")

	if err := m.DeleteTurns(ctx, 1); err != nil {
		t.Fatalf("DeleteTurns error: %v", err)
	}
	if turns, _ := m.RecentTurns(ctx, 1, 10); len(turns) != 0 {
		t.Fatalf("expected no turns left, got %d", len(turns))
	}
	if turns, _ := m.RecentTurns(ctx, 2, 10); len(turns) != 1 {
		t.Fatalf("other users' turns must survive, got %d", len(turns))
	}
	if err := m.DeleteTurns(ctx, 99); err != nil {
		t.Fatalf("deleting an empty history must succeed: %v", err)
	}
}

func TestRecentTurnsZeroLimit(t *testing.T) {
	m, _ := newTestManager(t)
	m.AppendTurn(context.Background(), 1, models.RoleUser, "a")
	if turns, err := m.RecentTurns(context.Background(), 1, 0); err != nil || len(turns) != 0 {
		t.Fatalf("expected empty result, got %v %v", turns, err)
	}
}

func TestRebind(t *testing.T) {
	pg := dialect{driver: DriverPostgres}
	if got := pg.rebind("SELECT ? WHERE a = ? AND b = ?"); got != "SELECT $1 WHERE a = $2 AND b = $3" {
		t.Fatalf("unexpected postgres query %q", got)
	}
	my := dialect{driver: DriverMySQL}
	if got := my.rebind("SELECT ?"); got != "SELECT ?" {
		t.Fatalf("mysql query must be untouched, got %q", got)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle", DSN: "x"}, logger.NewDiscardLogger()); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
