package jobs

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicateJob は同一IDのジョブが既に存在する場合に返されます。
var ErrDuplicateJob = errors.New("job already exists")

// ErrJobNotFound は指定されたジョブが存在しない場合に返されます。
var ErrJobNotFound = errors.New("job not found")

// Registry はジョブ状態のプロセス内ストアです。
// 全操作は並行呼び出しに対して安全で、読み取りは常にスナップショットを返します。
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry は空の Registry を作成します。
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create は新しいジョブを登録します。同一IDが存在する場合は ErrDuplicateJob を返します。
func (r *Registry) Create(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return ErrDuplicateJob
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	stored := job
	r.jobs[job.ID] = &stored
	return nil
}

// Get はジョブ状態のスナップショットを返します。
// 更新途中の状態（percent と message の不整合など）が見えることはありません。
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Update はジョブに対して read-modify-write を排他的に適用します。
func (r *Registry) Update(id string, mutate func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	mutate(job)
	job.UpdatedAt = time.Now()
	return nil
}

// Sweep は終了状態になってから retention 以上経過したジョブを削除し、
// 削除したジョブIDを返します。
func (r *Registry) Sweep(retention time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	var removed []string
	for id, job := range r.jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len は登録中のジョブ数を返します。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
