package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
// ローカル認証プロバイダー利用時のみ使われる。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, email, full_name, email_confirmed_at, created_at`

func scanAccount(row interface{ Scan(...any) error }, extra ...any) (*model.Account, error) {
	a := &model.Account{}
	var confirmed sql.NullTime
	dest := append([]any{&a.ID, &a.Email, &a.FullName, &confirmed, &a.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if confirmed.Valid {
		t := confirmed.Time
		a.EmailConfirmedAt = &t
	}
	return a, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return a, nil
}

// FindByEmail はメールアドレスでアカウントとパスワードハッシュを取得する。
// メールアドレスは大文字小文字を区別しない。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, string, error) {
	var hash string
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+`, password_hash FROM accounts WHERE lower(email) = lower($1)`,
		email,
	), &hash)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find account by email: %w", err)
	}
	return a, hash, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account, passwordHash, verificationToken string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, full_name, verification_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Email, passwordHash, account.FullName, verificationToken, account.CreatedAt,
	)
	if isUniqueViolation(err, "") {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// SetVerificationToken は確認トークンを差し替える。確認済みアカウントは対象外。
func (r *PostgresAccountRepo) SetVerificationToken(ctx context.Context, accountID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET verification_token = $1
		 WHERE id = $2 AND email_confirmed_at IS NULL`,
		token, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}
	return nil
}

// ConfirmByToken は確認トークンに対応するアカウントを確認済みにし、トークンを無効化する。
func (r *PostgresAccountRepo) ConfirmByToken(ctx context.Context, token string, at time.Time) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`UPDATE accounts SET email_confirmed_at = $1, verification_token = NULL
		 WHERE verification_token = $2
		 RETURNING `+accountColumns,
		at, token,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm account: %w", err)
	}
	return a, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
