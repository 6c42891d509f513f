// Package cleanup は認証データの定期削除ジョブを提供する。
// 期限切れのセッションと、保持期間（デフォルト7日）を過ぎてもメール確認されないアカウントを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ministry/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// target は1回の削除対象。
type target struct {
	name     string
	query    string
	interval bool // 第1引数に保持期間を渡すか
}

// targets は実行順に並べた削除対象。
// 未確認アカウントのプロフィールはアカウントより先に削除する。管理者のものは残す。
var targets = []target{
	{
		name:  "expired_sessions",
		query: `DELETE FROM sessions WHERE expires_at < now()`,
	},
	{
		name: "unconfirmed_profiles",
		query: `DELETE FROM profiles p USING accounts a
			WHERE p.id = a.id
			  AND p.is_admin = FALSE
			  AND a.email_confirmed_at IS NULL
			  AND a.created_at < now() - $1::interval`,
		interval: true,
	},
	{
		name: "unconfirmed_accounts",
		query: `DELETE FROM accounts a
			WHERE a.email_confirmed_at IS NULL
			  AND a.created_at < now() - $1::interval
			  AND NOT EXISTS (SELECT 1 FROM profiles p WHERE p.id = a.id AND p.is_admin)`,
		interval: true,
	},
}

// CleanupJob は認証データの定期削除ジョブ。冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // 未確認アカウントの保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は7日。collectorがnilの場合は集計しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		metrics:       collector,
		RetentionDays: 7,
	}
}

// Run は全対象を順に削除する。途中で失敗した場合は以降の対象を実行しない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	var total int64
	for _, t := range targets {
		var args []any
		if t.interval {
			args = append(args, interval)
		}

		result, err := j.db.ExecContext(ctx, t.query, args...)
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("target", t.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%sのクリーンアップに失敗: %w", t.name, err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}
		j.metrics.RecordCleanup(t.name, deleted)
		total += deleted

		j.logger.Info("クリーンアップ対象を処理しました",
			slog.String("target", t.name),
			slog.Int64("deleted_count", deleted),
		)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はRunを起動直後に1回、以降intervalごとに実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
