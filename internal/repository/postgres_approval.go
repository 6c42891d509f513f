package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/ministry/internal/model"
)

// approvalColumns はモデレーション対象テーブルの承認カラム名を保持する。
// カラム名は固定値のみを渡すこと（ユーザー入力を渡してはならない）。
type approvalColumns struct {
	table      string
	approved   string
	approvedAt string
}

var (
	commentApproval   = approvalColumns{table: "comments", approved: "approved", approvedAt: "approved_at"}
	testimonyApproval = approvalColumns{table: "testimonies", approved: "approved", approvedAt: "approved_at"}
	postPublication   = approvalColumns{table: "blog_posts", approved: "published", approvedAt: "published_at"}
)

func (c approvalColumns) find(ctx context.Context, db *sql.DB, id string) (*model.Approval, error) {
	var approved bool
	var at sql.NullTime
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s, %s FROM %s WHERE id = $1`, c.approved, c.approvedAt, c.table),
		id,
	).Scan(&approved, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s approval: %w", c.table, err)
	}
	a := scanApproval(approved, at)
	return &a, nil
}

func (c approvalColumns) update(ctx context.Context, db *sql.DB, id string, a model.Approval) error {
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1, %s = $2 WHERE id = $3`, c.table, c.approved, c.approvedAt),
		a.Approved, nullTime(a.ApprovedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s approval: %w", c.table, err)
	}
	return nil
}

func (c approvalColumns) delete(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", c.table, err)
	}
	return nil
}

func (c approvalColumns) count(ctx context.Context, db *sql.DB, approved bool) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, c.table, c.approved),
		approved,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.table, err)
	}
	return n, nil
}

// listClauses はListQueryからWHERE/ORDER BY/LIMIT句を組み立てる。
// alias はテーブル別名、where は追加条件（空可）、nextArg は次のプレースホルダ番号。
func (c approvalColumns) listClauses(q ListQuery, alias, where string, nextArg int) (string, []any) {
	var conds []string
	if where != "" {
		conds = append(conds, where)
	}
	if q.ApprovedOnly {
		conds = append(conds, fmt.Sprintf("%s.%s = TRUE", alias, c.approved))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	switch q.SortBy {
	case SortByApprovedAt:
		fmt.Fprintf(&b, " ORDER BY %s.%s DESC NULLS LAST, %s.created_at DESC", alias, c.approvedAt, alias)
	default:
		fmt.Fprintf(&b, " ORDER BY %s.created_at DESC", alias)
	}

	var args []any
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT $%d", nextArg)
		args = append(args, q.Limit)
	}
	return b.String(), args
}

// nullTime は*time.Timeをドライバに渡せる値に変換する。
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// scanApproval はスキャン済みの承認カラムをmodel.Approvalに変換する。
func scanApproval(approved bool, at sql.NullTime) model.Approval {
	a := model.Approval{Approved: approved}
	if at.Valid {
		t := at.Time
		a.ApprovedAt = &t
	}
	return a
}

// isUniqueViolation はPostgreSQLの一意制約違反（23505）かを判定する。
// constraintが空でない場合は制約名も一致させる。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
