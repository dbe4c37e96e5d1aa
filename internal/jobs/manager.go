package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yourusername/voice-scribe/internal/whisper"
)

// ErrJobNotProcessing は処理中でないジョブへのキャンセル要求に返されます。
var ErrJobNotProcessing = errors.New("job is not processing")

// ErrResultNotReady は成果物がまだ取得できない場合に返されます。
var ErrResultNotReady = errors.New("transcript is not ready")

// Normalizer は入力音声を認識エンジン向けに正規化します。
type Normalizer interface {
	Normalize(ctx context.Context, sourcePath string) (string, func(), error)
}

// DurationResolver は音声の総再生時間（秒）を取得します。
type DurationResolver interface {
	Resolve(ctx context.Context, audioPath string) (float64, error)
}

// Manager はジョブの投入・照会・キャンセルと掃除を担います。
type Manager struct {
	registry   *Registry
	canceller  *Canceller
	engine     whisper.Engine
	transcoder Normalizer
	durations  DurationResolver
	outputDir  string
	language   string
	logger     *log.Logger
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
}

// ManagerOptions は Manager の依存と設定をまとめます。
type ManagerOptions struct {
	Engine     whisper.Engine
	Transcoder Normalizer
	Durations  DurationResolver
	OutputDir  string // 成果物 <jobID>.txt の出力先
	Language   string // 認識エンジンへの言語ヒント
	// MaxConcurrent は同時に処理するジョブ数の上限です。0 は無制限で、
	// 上限に達している間は投入済みジョブが queued のまま待機します。
	MaxConcurrent int
	Logger        *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is nil")
	}
	if opts.Transcoder == nil {
		return nil, errors.New("transcoder is nil")
	}
	if opts.Durations == nil {
		return nil, errors.New("durations is nil")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var sem *semaphore.Weighted
	if opts.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}

	return &Manager{
		registry:   NewRegistry(),
		canceller:  NewCanceller(),
		engine:     opts.Engine,
		transcoder: opts.Transcoder,
		durations:  opts.Durations,
		outputDir:  opts.OutputDir,
		language:   opts.Language,
		logger:     logger,
		sem:        sem,
	}, nil
}

// Submit はジョブを登録してワーカーを起動し、ジョブIDを即座に返します。
func (m *Manager) Submit(sourcePath string) (string, error) {
	if sourcePath == "" {
		return "", fmt.Errorf("sourcePath is required")
	}

	jobID := newJobID(filepath.Base(sourcePath), time.Now())
	job := Job{
		ID:         jobID,
		Status:     StatusQueued,
		Progress:   0,
		Message:    "開始待ちです",
		SourcePath: sourcePath,
		OutputPath: filepath.Join(m.outputDir, jobID+".txt"),
	}

	if err := m.registry.Create(job); err != nil {
		return "", err
	}
	cancelled := m.canceller.Register(jobID)

	m.wg.Add(1)
	go m.runJob(job, cancelled)

	m.logger.Printf("Transcribe started: %s", jobID)
	return jobID, nil
}

// GetJob はジョブ状態のスナップショットを返します。
func (m *Manager) GetJob(id string) (Job, error) {
	return m.registry.Get(id)
}

// Cancel は処理中のジョブにキャンセルを要求します。
// ワーカーの停止を待たず、要求の受理のみを報告します。
func (m *Manager) Cancel(id string) error {
	job, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if job.Status != StatusProcessing {
		return ErrJobNotProcessing
	}
	m.canceller.Set(id)
	return nil
}

// OpenResult は成果物ファイルを開き、ジョブ情報とファイルハンドルを返します。
// done のジョブは常に、cancelled / error のジョブは1行以上書き出されている
// 場合のみ取得できます。
func (m *Manager) OpenResult(id string) (Job, *os.File, error) {
	job, err := m.registry.Get(id)
	if err != nil {
		return Job{}, nil, err
	}
	if !job.Status.IsTerminal() {
		return Job{}, nil, ErrResultNotReady
	}

	file, err := os.Open(job.OutputPath)
	if err != nil {
		return Job{}, nil, ErrResultNotReady
	}

	if job.Status != StatusDone {
		info, err := file.Stat()
		if err != nil || info.Size() == 0 {
			file.Close()
			return Job{}, nil, ErrResultNotReady
		}
	}

	return job, file, nil
}

// StartReaper は保持期間を過ぎた終了ジョブを定期的に削除します。
// ctx のキャンセルで停止します。
func (m *Manager) StartReaper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := m.registry.Sweep(retention)
				for _, id := range removed {
					m.canceller.Remove(id)
					_ = os.Remove(filepath.Join(m.outputDir, id+".txt"))
				}
				if len(removed) > 0 {
					m.logger.Printf("掃除: %d件の終了ジョブを削除しました", len(removed))
				}
			}
		}
	}()
}

// Wait は起動済みワーカーの終了を待ちます（テストとシャットダウン用）。
func (m *Manager) Wait() {
	m.wg.Wait()
}

// newJobID はファイル名と受付時刻からジョブIDを生成します。
func newJobID(filename string, at time.Time) string {
	return filename + "_" + at.Format("20060102150405")
}
