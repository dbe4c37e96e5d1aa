package jobs

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/yourusername/voice-scribe/internal/transcript"
)

// runJob は1ジョブ分のワーカーです。音声の正規化、長さ取得、認識ストリームの
// 消費、セグメントごとの書き出しと進捗更新を行い、必ずいずれか1つの終了状態
// （done / cancelled / error）へ遷移させます。処理中の失敗はこのジョブ内に
// 閉じ、呼び出し側へは伝播しません。
func (m *Manager) runJob(job Job, cancelled *atomic.Bool) {
	defer m.wg.Done()

	ctx := context.Background()

	// 上限に達している間は queued のまま待機する
	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			m.markError(job.ID, "エラーが発生しました", err)
			return
		}
		defer m.sem.Release(1)
	}

	m.updateJob(job.ID, func(j *Job) {
		j.Status = StatusProcessing
		j.Message = "文字起こし中..."
	})
	m.logger.Printf("[JOB %s] 文字起こし開始 ファイル: %s", job.ID, job.SourcePath)

	audioPath, cleanup, err := m.transcoder.Normalize(ctx, job.SourcePath)
	if err != nil {
		m.markError(job.ID, "音声の変換に失敗しました", err)
		return
	}
	defer cleanup()
	if audioPath != job.SourcePath {
		m.logger.Printf("[JOB %s] wav変換完了: %s", job.ID, audioPath)
	}

	// 総時間は進捗表示にのみ使うため、取得失敗は 0 扱いで続行する
	totalDuration, err := m.durations.Resolve(ctx, audioPath)
	if err != nil {
		totalDuration = 0
		m.logger.Printf("[JOB %s] 音声長取得エラー: %v", job.ID, err)
	}

	stream, err := m.engine.Transcribe(ctx, audioPath, m.language)
	if err != nil {
		m.markError(job.ID, "エラーが発生しました", err)
		return
	}
	defer stream.Close()

	writer, err := transcript.NewWriter(job.OutputPath)
	if err != nil {
		m.markError(job.ID, "結果ファイルの作成に失敗しました", err)
		return
	}
	defer writer.Close()

	startedAt := time.Now()
	for {
		// セグメント境界ごとのキャンセル確認。次のセグメントを取り出す前に
		// 行うため、要求後に消費される追加セグメントは最大1件に収まる。
		if cancelled.Load() {
			m.updateJob(job.ID, func(j *Job) {
				j.Status = StatusCancelled
				j.Message = "キャンセルされました"
			})
			m.logger.Printf("[JOB %s] キャンセルされました", job.ID)
			return
		}

		segment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			m.updateJob(job.ID, func(j *Job) {
				j.Status = StatusDone
				j.Progress = 100
				j.Message = "完了"
			})
			elapsedMin := time.Since(startedAt).Minutes()
			m.logger.Printf("[JOB %s] 文字起こし完了 所要時間: %.2f分 ファイル: %s", job.ID, elapsedMin, audioPath)
			return
		}
		if err != nil {
			m.markError(job.ID, "エラーが発生しました", err)
			return
		}

		if err := writer.Append(segment.Text); err != nil {
			m.markError(job.ID, "結果ファイルの書き込みに失敗しました", err)
			return
		}

		percent := progressPercent(segment.End, totalDuration)
		m.updateJob(job.ID, func(j *Job) {
			j.Progress = percent
			j.Message = progressMessage(percent)
		})
		m.logger.Printf("[JOB %s] 進捗: %d%%", job.ID, percent)
	}
}

// markError はジョブをエラー終了させます。原因はログにのみ残し、
// 照会APIには短いメッセージだけを公開します。
func (m *Manager) markError(jobID, message string, cause error) {
	m.updateJob(jobID, func(j *Job) {
		j.Status = StatusError
		j.Message = message
	})
	m.logger.Printf("[JOB %s] Transcribe error: %v", jobID, cause)
}

func (m *Manager) updateJob(jobID string, mutate func(*Job)) {
	if err := m.registry.Update(jobID, mutate); err != nil {
		m.logger.Printf("failed to update job=%s: %v", jobID, err)
	}
}
