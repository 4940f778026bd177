package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/middleware"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Storage interface defines record operations on users and their turns
type Storage interface {
	// User operations
	UpsertUser(ctx context.Context, user *models.User) error
	TouchUser(ctx context.Context, user *models.User) error

	// Turn operations
	AppendTurn(ctx context.Context, userID int64, role models.Role, content string) error
	RecentTurns(ctx context.Context, userID int64, limit int) ([]models.Turn, error)
	DeleteTurns(ctx context.Context, userID int64) error

	Close() error
}

// Manager wraps the SQL storage with metrics. Failures are returned to the
// caller, which logs them with its own context.
type Manager struct {
	storage Storage
	metrics *middleware.Metrics
}

// NewManager opens the configured database and applies the schema if asked to
func NewManager(cfg *config.DatabaseConfig, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	sqlStorage, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sqlStorage.Migrate(ctx); err != nil {
			sqlStorage.Close()
			return nil, err
		}
	}

	return NewManagerWithStorage(sqlStorage, metrics), nil
}

// NewManagerWithStorage wraps an already opened storage
func NewManagerWithStorage(storage Storage, metrics *middleware.Metrics) *Manager {
	return &Manager{
		storage: storage,
		metrics: metrics,
	}
}

func (m *Manager) observe(operation string, start time.Time, err error) {
	if m.metrics != nil {
		m.metrics.RecordStorageOperation(operation, middleware.StatusLabel(err), time.Since(start))
	}
}

func (m *Manager) UpsertUser(ctx context.Context, user *models.User) error {
	start := time.Now()
	err := m.storage.UpsertUser(ctx, user)
	m.observe("upsert_user", start, err)
	return err
}

func (m *Manager) TouchUser(ctx context.Context, user *models.User) error {
	start := time.Now()
	err := m.storage.TouchUser(ctx, user)
	m.observe("touch_user", start, err)
	return err
}

func (m *Manager) AppendTurn(ctx context.Context, userID int64, role models.Role, content string) error {
	start := time.Now()
	err := m.storage.AppendTurn(ctx, userID, role, content)
	m.observe("append_turn", start, err)
	return err
}

func (m *Manager) RecentTurns(ctx context.Context, userID int64, limit int) ([]models.Turn, error) {
	start := time.Now()
	turns, err := m.storage.RecentTurns(ctx, userID, limit)
	m.observe("recent_turns", start, err)
	return turns, err
}

func (m *Manager) DeleteTurns(ctx context.Context, userID int64) error {
	start := time.Now()
	err := m.storage.DeleteTurns(ctx, userID)
	m.observe("delete_turns", start, err)
	return err
}

func (m *Manager) Close() error {
	return m.storage.Close()
}

// SQLStorage implements Storage on database/sql for postgres, sqlite3 and mysql
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	logger  *logrus.Logger
}

// NewSQLStorage wraps an open database handle
func NewSQLStorage(db *sql.DB, driver string, logger *logrus.Logger) (*SQLStorage, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStorage{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}, nil
}

// Migrate creates the users and messages tables when missing
func (s *SQLStorage) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	s.logger.WithField("driver", s.dialect.driver).Info("Database schema ready")
	return nil
}

func (s *SQLStorage) UpsertUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertUser(),
		user.ID, user.Username, user.FirstName, user.LastName, s.activeAt(user))
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// TouchUser refreshes last_active, registering the user if no row exists yet.
func (s *SQLStorage) TouchUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE users SET last_active = ? WHERE telegram_id = ?"),
		s.activeAt(user), user.ID)
	if err != nil {
		return fmt.Errorf("failed to touch user %d: %w", user.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	return s.UpsertUser(ctx, user)
}

// activeAt prefers the time the user's message was sent over the clock.
func (s *SQLStorage) activeAt(user *models.User) time.Time {
	if !user.LastActive.IsZero() {
		return user.LastActive.UTC()
	}
	return s.now()
}

func (s *SQLStorage) AppendTurn(ctx context.Context, userID int64, role models.Role, content string) error {
	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind("INSERT INTO messages (telegram_id, role, content, created_at) VALUES (?, ?, ?, ?)"),
		userID, string(role), content, s.now())
	if err != nil {
		return fmt.Errorf("failed to append %s turn for user %d: %w", role, userID, err)
	}
	return nil
}

// RecentTurns returns at most limit turns of the user, newest first.
func (s *SQLStorage) RecentTurns(ctx context.Context, userID int64, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind("SELECT id, role, content, created_at FROM messages WHERE telegram_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns for user %d: %w", userID, err)
	}
	defer rows.Close()

	turns := make([]models.Turn, 0, limit)
	for rows.Next() {
		var (
			turn models.Turn
			role string
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.UserID = userID
		turn.Role = models.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return turns, nil
}

func (s *SQLStorage) DeleteTurns(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM messages WHERE telegram_id = ?"), userID); err != nil {
		return fmt.Errorf("failed to delete turns for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
