// Package jobs は文字起こしジョブのライフサイクル管理を提供します。
package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

// IsTerminal は終了状態かどうかを返します。終了状態から他の状態への遷移はありません。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// Job はジョブの現在状態を表します。
// 作成後に Progress / Status / Message を書き換えるのは担当ワーカーのみです。
type Job struct {
	ID         string    `json:"jobId"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message"`
	SourcePath string    `json:"-"`
	OutputPath string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
