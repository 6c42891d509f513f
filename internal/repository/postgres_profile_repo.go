package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, is_admin, created_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.IsAdmin, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	return p, nil
}

// FindByEmail はメールアドレスでプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, is_admin, created_at FROM profiles WHERE lower(email) = lower($1)`,
		email,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.IsAdmin, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}
	return p, nil
}

// CreateIfAbsent はプロフィールが存在しない場合のみ作成する。
// is_adminは常にfalseで作成され、既存行の管理者フラグは変更しない。
func (r *PostgresProfileRepo) CreateIfAbsent(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, is_admin, created_at)
		 VALUES ($1, $2, $3, FALSE, $4)
		 ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.Email, profile.FullName, profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// SetAdmin は管理者フラグを更新する。
func (r *PostgresProfileRepo) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET is_admin = $1 WHERE id = $2`,
		isAdmin, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
