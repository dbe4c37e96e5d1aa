package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry()

	err := r.Create(Job{ID: "a.wav_20250101120000", Status: StatusQueued, Message: "開始待ちです"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	job, err := r.Get("a.wav_20250101120000")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job.Status != StatusQueued {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set on create")
	}
}

func TestRegistryCreateDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Create(Job{ID: "dup"}); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}
	if err := r.Create(Job{ID: "dup"}); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRegistryUpdateNotFound(t *testing.T) {
	r := NewRegistry()

	err := r.Update("missing", func(j *Job) { j.Progress = 10 })
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRegistryGetReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(Job{ID: "snap", Status: StatusProcessing}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	job, err := r.Get("snap")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	job.Progress = 99

	stored, err := r.Get("snap")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Progress != 0 {
		t.Fatalf("mutating a snapshot leaked into the registry: %d", stored.Progress)
	}
}

// 進捗・メッセージ・状態の3点が途中状態で観測されないことを確認する。
func TestRegistryUpdateAtomicity(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(Job{ID: "atomic", Status: StatusProcessing}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 200; i++ {
			percent := i % 101
			_ = r.Update("atomic", func(j *Job) {
				j.Progress = percent
				j.Message = fmt.Sprintf("文字起こし中...（%d%%）", percent)
			})
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		job, err := r.Get("atomic")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		want := fmt.Sprintf("文字起こし中...（%d%%）", job.Progress)
		if job.Message != "" && job.Message != want {
			t.Fatalf("torn read: progress=%d message=%q", job.Progress, job.Message)
		}
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = r.Create(Job{ID: fmt.Sprintf("job-%d", n)})
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Fatalf("expected 50 jobs, got %d", r.Len())
	}
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(Job{ID: "old-done"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := r.Create(Job{ID: "active"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := r.Update("old-done", func(j *Job) { j.Status = StatusDone }); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := r.Update("active", func(j *Job) { j.Status = StatusProcessing }); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	removed := r.Sweep(10 * time.Millisecond)
	if len(removed) != 1 || removed[0] != "old-done" {
		t.Fatalf("unexpected sweep result: %v", removed)
	}
	if _, err := r.Get("old-done"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected swept job to be gone, got %v", err)
	}
	// 処理中のジョブは保持期間に関係なく残る
	if _, err := r.Get("active"); err != nil {
		t.Fatalf("active job should survive sweep: %v", err)
	}
}
