package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ministry/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用したブログ記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postSelect = `SELECT b.id, b.title, b.slug, b.content, b.excerpt, b.featured_image,
		b.author_id, COALESCE(p.full_name, ''), b.published, b.published_at,
		b.created_at, b.updated_at
	FROM blog_posts b
	LEFT JOIN profiles p ON p.id = b.author_id`

func scanPost(row interface{ Scan(...any) error }) (*model.BlogPost, error) {
	post := &model.BlogPost{}
	var image, author sql.NullString
	var published bool
	var publishedAt sql.NullTime
	err := row.Scan(&post.ID, &post.Title, &post.Slug, &post.Content, &post.Excerpt, &image,
		&author, &post.AuthorName, &published, &publishedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		post.FeaturedImage = &image.String
	}
	if author.Valid {
		post.AuthorID = &author.String
	}
	post.Publication = scanApproval(published, publishedAt)
	return post, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE b.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE b.slug = $1`, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by slug: %w", err)
	}
	return post, nil
}

// List は条件に一致する記事一覧を返す。
func (r *PostgresPostRepo) List(ctx context.Context, q ListQuery) ([]*model.BlogPost, error) {
	clauses, args := postPublication.listClauses(q, "b", "", 1)
	rows, err := r.db.QueryContext(ctx, postSelect+clauses, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.BlogPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Create は記事を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.BlogPost) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blog_posts (id, title, slug, content, excerpt, featured_image, author_id,
		                         published, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		post.ID, post.Title, post.Slug, post.Content, post.Excerpt, post.FeaturedImage, post.AuthorID,
		post.Publication.Approved, nullTime(post.Publication.ApprovedAt), post.CreatedAt, post.UpdatedAt,
	)
	if isUniqueViolation(err, "blog_posts_slug_key") {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は記事の本文系カラムを更新する。公開状態はUpdateApprovalで変更する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.BlogPost) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE blog_posts
		 SET title = $1, slug = $2, content = $3, excerpt = $4, featured_image = $5, updated_at = $6
		 WHERE id = $7`,
		post.Title, post.Slug, post.Content, post.Excerpt, post.FeaturedImage, post.UpdatedAt, post.ID,
	)
	if isUniqueViolation(err, "blog_posts_slug_key") {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// FindApproval は公開状態を取得する。
func (r *PostgresPostRepo) FindApproval(ctx context.Context, id string) (*model.Approval, error) {
	return postPublication.find(ctx, r.db, id)
}

// UpdateApproval は公開状態を更新する。
func (r *PostgresPostRepo) UpdateApproval(ctx context.Context, id string, a model.Approval) error {
	return postPublication.update(ctx, r.db, id, a)
}

// Delete は記事を削除する。コメントはCASCADE削除される。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	return postPublication.delete(ctx, r.db, id)
}

// CountByApproval は公開状態ごとの記事数を返す。
func (r *PostgresPostRepo) CountByApproval(ctx context.Context, published bool) (int, error) {
	return postPublication.count(ctx, r.db, published)
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
