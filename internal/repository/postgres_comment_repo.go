package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

const commentSelect = `SELECT c.id, c.blog_post_id, c.author_name, c.author_email, c.content,
		c.approved, c.approved_at, c.created_at
	FROM comments c`

func (r *PostgresCommentRepo) query(ctx context.Context, sqlText string, args ...any) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		var approved bool
		var approvedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorName, &c.AuthorEmail, &c.Content,
			&approved, &approvedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Approval = scanApproval(approved, approvedAt)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, blog_post_id, author_name, author_email, content, approved, approved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PostID, c.AuthorName, c.AuthorEmail, c.Content,
		c.Approval.Approved, nullTime(c.Approval.ApprovedAt), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// ListByPost は指定記事のコメント一覧を返す。
func (r *PostgresCommentRepo) ListByPost(ctx context.Context, postID string, q ListQuery) ([]*model.Comment, error) {
	clauses, args := commentApproval.listClauses(q, "c", "c.blog_post_id = $1", 2)
	return r.query(ctx, commentSelect+clauses, append([]any{postID}, args...)...)
}

// List は全記事のコメント一覧を返す。
func (r *PostgresCommentRepo) List(ctx context.Context, q ListQuery) ([]*model.Comment, error) {
	clauses, args := commentApproval.listClauses(q, "c", "", 1)
	return r.query(ctx, commentSelect+clauses, args...)
}

// FindApproval は承認状態を取得する。
func (r *PostgresCommentRepo) FindApproval(ctx context.Context, id string) (*model.Approval, error) {
	return commentApproval.find(ctx, r.db, id)
}

// UpdateApproval は承認状態を更新する。
func (r *PostgresCommentRepo) UpdateApproval(ctx context.Context, id string, a model.Approval) error {
	return commentApproval.update(ctx, r.db, id, a)
}

// Delete はコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	return commentApproval.delete(ctx, r.db, id)
}

// CountByApproval は承認状態ごとのコメント数を返す。
func (r *PostgresCommentRepo) CountByApproval(ctx context.Context, approved bool) (int, error) {
	return commentApproval.count(ctx, r.db, approved)
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
