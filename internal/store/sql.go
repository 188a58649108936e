package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"webping/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const userColumns = `username, password_hash, email, totp_secret, totp_enabled, created_at`

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type SQLStore struct {
	db *sqlx.DB
}

// Open picks the driver from the URL: postgres:// and postgresql:// go to
// lib/pq, anything else is treated as a sqlite DSN.
func Open(ctx context.Context, databaseURL string) (*SQLStore, error) {
	driver, dsn := DriverFor(databaseURL)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// DriverFor maps a DATABASE_URL to a registered driver name and DSN.
func DriverFor(databaseURL string) (driver, dsn string) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return DriverPostgres, databaseURL
	}

	dsn = databaseURL
	if !strings.Contains(dsn, "_pragma=foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	return DriverSQLite, dsn
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) DriverName() string {
	return s.db.DriverName()
}

// User methods

func (s *SQLStore) CreateUser(ctx context.Context, username, password, email string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`),
		username, passwordHash, email,
	)
	if isUniqueViolation(err) {
		return models.User{}, ErrUserExists
	}
	if err != nil {
		return models.User{}, err
	}

	return s.GetUser(ctx, username)
}

func (s *SQLStore) GetUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`),
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return user, err
}

func (s *SQLStore) UpdateUserPassword(ctx context.Context, username, newPasswordHash string) error {
	return s.execOne(ctx, "user",
		`UPDATE users SET password_hash = ? WHERE username = ?`,
		newPasswordHash, username,
	)
}

func (s *SQLStore) UpdateUserEmail(ctx context.Context, username, email string) error {
	return s.execOne(ctx, "user",
		`UPDATE users SET email = ? WHERE username = ?`,
		email, username,
	)
}

func (s *SQLStore) UpdateUser2FA(ctx context.Context, username, totpSecret string, enabled bool) error {
	return s.execOne(ctx, "user",
		`UPDATE users SET totp_secret = ?, totp_enabled = ? WHERE username = ?`,
		totpSecret, enabled, username,
	)
}

// Topic methods

func (s *SQLStore) CreateTopic(ctx context.Context, name, username string) (models.Topic, error) {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO topics (name, username) VALUES (?, ?)`),
		name, username,
	)
	if isUniqueViolation(err) {
		return models.Topic{}, ErrTopicExists
	}
	if err != nil {
		return models.Topic{}, err
	}

	var topic models.Topic
	err = s.db.GetContext(ctx, &topic,
		s.db.Rebind(`SELECT name, username, created_at FROM topics WHERE name = ?`),
		name,
	)
	return topic, err
}

func (s *SQLStore) GetTopics(ctx context.Context, username string) ([]models.Topic, error) {
	topics := []models.Topic{}
	err := s.db.SelectContext(ctx, &topics,
		s.db.Rebind(`SELECT name, username, created_at FROM topics WHERE username = ? ORDER BY name`),
		username,
	)
	return topics, err
}

func (s *SQLStore) DeleteTopic(ctx context.Context, name, username string) error {
	return s.execOne(ctx, "topic",
		`DELETE FROM topics WHERE name = ? AND username = ?`,
		name, username,
	)
}

// Push subscription methods

func (s *SQLStore) CreatePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	var id int
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO push_subscriptions (name, endpoint, p256dh, auth, username)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		sub.Name, sub.Endpoint, sub.P256dh, sub.Auth, sub.Username,
	).Scan(&id)
	if isUniqueViolation(err) {
		return models.PushSubscription{}, ErrDuplicateEndpoint
	}
	if err != nil {
		return models.PushSubscription{}, err
	}

	var created models.PushSubscription
	err = s.db.GetContext(ctx, &created,
		s.db.Rebind(`SELECT id, name, endpoint, p256dh, auth, username, created_at FROM push_subscriptions WHERE id = ?`),
		id,
	)
	return created, err
}

func (s *SQLStore) GetPushSubscriptions(ctx context.Context, username string) ([]models.PushSubscription, error) {
	return s.selectSubscriptions(ctx, s.db, username)
}

func (s *SQLStore) RenamePushSubscription(ctx context.Context, id int, username, name string) error {
	return s.execOne(ctx, "push subscription",
		`UPDATE push_subscriptions SET name = ? WHERE id = ? AND username = ?`,
		name, id, username,
	)
}

func (s *SQLStore) DeletePushSubscription(ctx context.Context, id int, username string) error {
	return s.execOne(ctx, "push subscription",
		`DELETE FROM push_subscriptions WHERE id = ? AND username = ?`,
		id, username,
	)
}

func (s *SQLStore) ResolveTopic(ctx context.Context, name string) (models.User, []models.PushSubscription, error) {
	tx, err := s.db.BeginTxx(ctx, s.readOnly())
	if err != nil {
		return models.User{}, nil, err
	}
	defer tx.Rollback()

	var owner models.User
	err = tx.GetContext(ctx, &owner,
		tx.Rebind(`SELECT u.username, u.password_hash, u.email, u.totp_secret, u.totp_enabled, u.created_at
		 FROM topics t
		 INNER JOIN users u ON u.username = t.username
		 WHERE t.name = ?`),
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, nil, fmt.Errorf("topic %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.User{}, nil, err
	}

	subs, err := s.selectSubscriptions(ctx, tx, owner.Username)
	if err != nil {
		return models.User{}, nil, err
	}

	return owner, subs, nil
}

func (s *SQLStore) selectSubscriptions(ctx context.Context, q sqlx.QueryerContext, username string) ([]models.PushSubscription, error) {
	subs := []models.PushSubscription{}
	err := sqlx.SelectContext(ctx, q, &subs,
		s.db.Rebind(`SELECT id, name, endpoint, p256dh, auth, username, created_at
		 FROM push_subscriptions WHERE username = ? ORDER BY id`),
		username,
	)
	return subs, err
}

// execOne runs a statement that must touch exactly one row.
func (s *SQLStore) execOne(ctx context.Context, what, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) readOnly() *sql.TxOptions {
	if s.db.DriverName() == DriverPostgres {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
