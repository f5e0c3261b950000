// Package store persists user, account and link-request records in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
)

var (
	// ErrNotFound means no record matched the query.
	ErrNotFound = errors.New("record not found")

	// ErrNotLinked means the user has not linked a service account.
	ErrNotLinked = errors.New("user has no linked account")
)

type User struct {
	ID         domain.UserID
	DeviceName string
}

type Account struct {
	UserID       domain.UserID
	Username     string
	AccessToken  string
	RefreshToken string
	SessionToken string
	Expires      time.Time
}

func (a Account) Expired() bool {
	return time.Now().After(a.Expires)
}

type LinkRequest struct {
	Token   string
	UserID  domain.UserID
	Expires time.Time
}

func (r LinkRequest) Expired() bool {
	return time.Now().After(r.Expires)
}

type Store struct {
	db            *sql.DB
	defaultDevice string
}

// Open opens or creates the database at path and bootstraps the
// schema. defaultDevice names the relay device for newly created
// users.
func Open(path, defaultDevice string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user (
			id          TEXT PRIMARY KEY,
			device_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS account (
			user_id       TEXT PRIMARY KEY REFERENCES user(id) ON DELETE CASCADE,
			username      TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			session_token TEXT,
			expires       DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS link_request (
			token   TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES user(id) ON DELETE CASCADE,
			expires DATETIME NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, defaultDevice: defaultDevice}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// User operations

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, device_name FROM user WHERE id = ?`, string(id),
	).Scan(&u.ID, &u.DeviceName)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetOrCreateUser(ctx context.Context, id domain.UserID) (User, error) {
	u, err := s.GetUser(ctx, id)
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user (id, device_name) VALUES (?, ?)`,
		string(id), s.defaultDevice,
	); err != nil {
		return User{}, err
	}
	return User{ID: id, DeviceName: s.defaultDevice}, nil
}

func (s *Store) UpdateDeviceName(ctx context.Context, id domain.UserID, deviceName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user SET device_name = ? WHERE id = ?`,
		deviceName, string(id),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id domain.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user WHERE id = ?`, string(id))
	return err
}

// Account operations

func (s *Store) GetAccount(ctx context.Context, user domain.UserID) (Account, error) {
	var (
		a       Account
		session sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, access_token, refresh_token, session_token, expires
		 FROM account WHERE user_id = ?`, string(user),
	).Scan(&a.UserID, &a.Username, &a.AccessToken, &a.RefreshToken, &session, &a.Expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotLinked
	}
	if err != nil {
		return Account{}, err
	}
	a.SessionToken = session.String
	return a, nil
}

func (s *Store) UpsertAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (user_id, username, access_token, refresh_token, session_token, expires)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			session_token = excluded.session_token,
			expires = excluded.expires`,
		string(a.UserID), a.Username, a.AccessToken, a.RefreshToken,
		nullable(a.SessionToken), a.Expires,
	)
	return err
}

func (s *Store) UpdateSessionToken(ctx context.Context, user domain.UserID, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE account SET session_token = ? WHERE user_id = ?`,
		token, string(user),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotLinked
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM account WHERE user_id = ?`, string(user))
	return err
}

// Link request operations

func (s *Store) CreateLinkRequest(ctx context.Context, user domain.UserID, ttl time.Duration) (LinkRequest, error) {
	req := LinkRequest{
		Token:   uuid.NewString(),
		UserID:  user,
		Expires: time.Now().Add(ttl),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO link_request (token, user_id, expires) VALUES (?, ?, ?)`,
		req.Token, string(user), req.Expires,
	); err != nil {
		return LinkRequest{}, err
	}
	return req, nil
}

func (s *Store) GetLinkRequest(ctx context.Context, token string) (LinkRequest, error) {
	var req LinkRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires FROM link_request WHERE token = ?`, token,
	).Scan(&req.Token, &req.UserID, &req.Expires)
	if errors.Is(err, sql.ErrNoRows) {
		return LinkRequest{}, ErrNotFound
	}
	if err != nil {
		return LinkRequest{}, err
	}
	return req, nil
}

func (s *Store) DeleteLinkRequest(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM link_request WHERE token = ?`, token)
	return err
}

// Credentials resolves the connect credentials and device name for a
// user, implementing session.CredentialSource. A stored session token
// is preferred; the access token is the fallback for first connects.
func (s *Store) Credentials(ctx context.Context, user domain.UserID) (connect.Credentials, string, error) {
	account, err := s.GetAccount(ctx, user)
	if err != nil {
		return connect.Credentials{}, "", err
	}

	u, err := s.GetOrCreateUser(ctx, user)
	if err != nil {
		return connect.Credentials{}, "", err
	}

	token := account.SessionToken
	if token == "" {
		token = base64.StdEncoding.EncodeToString([]byte(account.AccessToken))
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return connect.Credentials{}, "", fmt.Errorf("corrupt session token: %w", err)
	}

	return connect.Credentials{Username: account.Username, Token: data}, u.DeviceName, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
