package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresTestimonyRepo はPostgreSQLを使用した証しリポジトリ。
type PostgresTestimonyRepo struct {
	db *sql.DB
}

// NewPostgresTestimonyRepo はPostgresTestimonyRepoを生成する。
func NewPostgresTestimonyRepo(db *sql.DB) *PostgresTestimonyRepo {
	return &PostgresTestimonyRepo{db: db}
}

// Create は証しを作成する。
func (r *PostgresTestimonyRepo) Create(ctx context.Context, t *model.Testimony) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO testimonies (id, author_name, author_email, title, content, approved, approved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.AuthorName, t.AuthorEmail, t.Title, t.Content,
		t.Approval.Approved, nullTime(t.Approval.ApprovedAt), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert testimony: %w", err)
	}
	return nil
}

// List は条件に一致する証し一覧を返す。
func (r *PostgresTestimonyRepo) List(ctx context.Context, q ListQuery) ([]*model.Testimony, error) {
	clauses, args := testimonyApproval.listClauses(q, "t", "", 1)
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.author_name, t.author_email, t.title, t.content,
		        t.approved, t.approved_at, t.created_at
		 FROM testimonies t`+clauses,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list testimonies: %w", err)
	}
	defer rows.Close()

	var testimonies []*model.Testimony
	for rows.Next() {
		t := &model.Testimony{}
		var approved bool
		var approvedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.AuthorName, &t.AuthorEmail, &t.Title, &t.Content,
			&approved, &approvedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan testimony: %w", err)
		}
		t.Approval = scanApproval(approved, approvedAt)
		testimonies = append(testimonies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate testimonies: %w", err)
	}
	return testimonies, nil
}

// FindApproval は承認状態を取得する。
func (r *PostgresTestimonyRepo) FindApproval(ctx context.Context, id string) (*model.Approval, error) {
	return testimonyApproval.find(ctx, r.db, id)
}

// UpdateApproval は承認状態を更新する。
func (r *PostgresTestimonyRepo) UpdateApproval(ctx context.Context, id string, a model.Approval) error {
	return testimonyApproval.update(ctx, r.db, id, a)
}

// Delete は証しを削除する。
func (r *PostgresTestimonyRepo) Delete(ctx context.Context, id string) error {
	return testimonyApproval.delete(ctx, r.db, id)
}

// CountByApproval は承認状態ごとの証し数を返す。
func (r *PostgresTestimonyRepo) CountByApproval(ctx context.Context, approved bool) (int, error) {
	return testimonyApproval.count(ctx, r.db, approved)
}

// compile-time interface check
var _ TestimonyRepository = (*PostgresTestimonyRepo)(nil)
