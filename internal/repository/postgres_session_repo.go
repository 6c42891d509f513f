package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.Account.ID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションをアカウント情報付きで取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s := &model.Session{}
	var confirmed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.expires_at, s.created_at,
		        a.id, a.email, a.full_name, a.email_confirmed_at, a.created_at
		 FROM sessions s
		 JOIN accounts a ON a.id = s.account_id
		 WHERE s.id = $1 AND s.expires_at > now()`,
		id,
	).Scan(&s.ID, &s.ExpiresAt, &s.CreatedAt,
		&s.Account.ID, &s.Account.Email, &s.Account.FullName, &confirmed, &s.Account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if confirmed.Valid {
		t := confirmed.Time
		s.Account.EmailConfirmedAt = &t
	}

	return s, nil
}

// Extend はセッションの有効期限を延長する。
func (r *PostgresSessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $1 WHERE id = $2`,
		expiresAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByAccountID は指定アカウントの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
