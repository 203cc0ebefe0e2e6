// Package cleanup は古いセッション行の自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超えて更新のないセッションを
// 日次バッチで削除する。期限切れトークンを持つセッションは
// リフレッシュで復活し得るため、期限ではなく最終更新時刻で判定する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionsCleanedRecorder は削除件数のメトリクス記録インターフェース。
type SessionsCleanedRecorder interface {
	RecordSessionsCleaned(count int)
}

// CleanupJob は放置されたセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	metrics       SessionsCleanedRecorder // nil可
	RetentionDays int                     // セッションの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。metricsはnil可。
func NewCleanupJob(db Executor, logger *slog.Logger, metrics SessionsCleanedRecorder) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		metrics:       metrics,
		RetentionDays: 30,
	}
}

// Run は保持期間を超えて更新のないセッションを削除する。
// updated_atがRetentionDays日前より古いセッション行をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM sessions WHERE updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsCleaned(int(deletedCount))
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
