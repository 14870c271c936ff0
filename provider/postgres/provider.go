package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	authcore "github.com/housekg/authcore"
	"github.com/housekg/authcore/provider/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// pgUniqueViolation is the Postgres error code for unique-constraint hits.
const pgUniqueViolation = "23505"

// Provider implements [authcore.UserProvider] on a Postgres users table.
// Identifier lookup matches username or email interchangeably.
type Provider struct {
	db *sql.DB
}

// New wraps an existing database handle. The caller keeps ownership of db.
func New(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// Open connects to Postgres via the pgx stdlib driver and runs pending
// migrations.
func Open(ctx context.Context, dsn string) (*Provider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	p := New(db)
	if err := p.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return p, nil
}

// RunMigrations applies the embedded goose migrations.
func (p *Provider) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, p.db, ".")
}

// Close closes the underlying database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Ping verifies connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Provider) GetUserByIdentifier(ctx context.Context, identifier string) (authcore.UserRecord, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users
		 WHERE username = $1 OR email = $1
		 `

	return p.scanUser(p.db.QueryRowContext(ctx, query, identifier))
}

func (p *Provider) GetUserByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users
		 WHERE id = $1
		 `

	return p.scanUser(p.db.QueryRowContext(ctx, query, userID))
}

func (p *Provider) CreateUser(ctx context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	user := authcore.UserRecord{
		UserID:       uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().Unix(),
	}

	query := `INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := p.db.ExecContext(ctx, query,
		user.UserID, user.Username, nullableEmail(user.Email), user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return authcore.UserRecord{}, authcore.ErrProviderDuplicateIdentifier
		}
		return authcore.UserRecord{}, fmt.Errorf("error performing sql request: %w", err)
	}

	return user, nil
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`

	res, err := p.db.ExecContext(ctx, query, userID, newHash)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if affected == 0 {
		return authcore.ErrUserNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Provider) scanUser(row rowScanner) (authcore.UserRecord, error) {
	var (
		user  authcore.UserRecord
		email sql.NullString
	)

	err := row.Scan(&user.UserID, &user.Username, &email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, fmt.Errorf("error performing sql request: %w", err)
	}

	user.Email = email.String
	return user, nil
}

func nullableEmail(email string) sql.NullString {
	return sql.NullString{String: email, Valid: email != ""}
}
