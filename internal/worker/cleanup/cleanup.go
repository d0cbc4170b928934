// Package cleanup は期限切れセッションとアイドル状態のワークスペースの定期削除を提供する。
// 期限切れセッションはTTLを自前で管理するストア（メモリ、PostgreSQL）からのみ削除し、
// Redisはネイティブの有効期限に任せる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger は期限切れのセッションエントリを削除するインターフェース。
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper はアイドル状態のワークスペースを破棄するインターフェース。
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// CleanupJob はセッションとワークスペースの削除ジョブ。冪等。
type CleanupJob struct {
	purger  Purger
	sweeper Sweeper
	logger  *slog.Logger
	IdleTTL time.Duration // ワークスペースを破棄するまでのアイドル時間（デフォルト: 2時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// purger と sweeper はどちらも nil を許す（該当する削除を行わない）。
func NewCleanupJob(purger Purger, sweeper Sweeper, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:  purger,
		sweeper: sweeper,
		logger:  logger,
		IdleTTL: 2 * time.Hour,
	}
}

// Run は期限切れセッションを削除し、アイドル状態のワークスペースを破棄する。
// セッション削除に失敗してもワークスペースの破棄は行う。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var purged int64
	var purgeErr error
	if j.purger != nil {
		purged, purgeErr = j.purger.DeleteExpired(ctx)
		if purgeErr != nil {
			j.logger.Error("期限切れセッションの削除に失敗しました",
				slog.String("error", purgeErr.Error()),
			)
			purgeErr = fmt.Errorf("期限切れセッションの削除に失敗: %w", purgeErr)
		}
	}

	evicted := 0
	if j.sweeper != nil {
		evicted = j.sweeper.Sweep(j.IdleTTL)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", purged),
		slog.Int("evicted_workspaces", evicted),
		slog.Duration("idle_ttl", j.IdleTTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return purgeErr
}

// Scheduler はcron式に従ってCleanupJobを実行する。
type Scheduler struct {
	cron *cron.Cron
	job  *CleanupJob
	spec string
	wg   sync.WaitGroup // 起動直後の実行
}

// NewScheduler はSchedulerを生成する。spec は "@every 10m" などのcron式。
func NewScheduler(job *CleanupJob, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		job:  job,
		spec: spec,
	}
}

// Start はジョブを登録してスケジューラを起動する。起動直後にも1回実行する。
// ctx がキャンセルされると実行中のジョブにも伝わる。
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.job.logger.Info("クリーンアップスケジューラを開始しました", slog.String("schedule", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce(ctx)
	}()
	return nil
}

// Stop はスケジューラを停止し、起動直後の実行を含め実行中のジョブの完了を待つ。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.job.logger.Info("クリーンアップスケジューラを停止しました")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job.Run(ctx); err != nil {
		s.job.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
