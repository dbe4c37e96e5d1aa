package jobs

import (
	"sync"
	"sync/atomic"
)

// Canceller はジョブ単位のキャンセル信号を保持します。
// フラグはジョブ登録時に作成され、一度立てたら降ろしません（二重要求は無害）。
// 書き手はキャンセルAPI、読み手は担当ワーカーのみで、可視性は atomic に依存します。
type Canceller struct {
	mu    sync.Mutex
	flags map[string]*atomic.Bool
}

// NewCanceller は空の Canceller を作成します。
func NewCanceller() *Canceller {
	return &Canceller{
		flags: make(map[string]*atomic.Bool),
	}
}

// Register はジョブのキャンセルフラグを false で初期化し、
// ワーカーが直接読めるフラグへの参照を返します。
func (c *Canceller) Register(id string) *atomic.Bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if flag, ok := c.flags[id]; ok {
		return flag
	}
	flag := &atomic.Bool{}
	c.flags[id] = flag
	return flag
}

// Set はキャンセルフラグを立てます。未登録の場合は false を返します。
// ワーカーの観測を待たない非同期のベストエフォート通知です。
func (c *Canceller) Set(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	flag, ok := c.flags[id]
	if !ok {
		return false
	}
	flag.Store(true)
	return true
}

// IsCancelled はキャンセル要求の有無をノンブロッキングで返します。
func (c *Canceller) IsCancelled(id string) bool {
	c.mu.Lock()
	flag, ok := c.flags[id]
	c.mu.Unlock()

	return ok && flag.Load()
}

// Remove は終了したジョブのフラグを破棄します（レジストリの掃除と対で呼ばれます）。
func (c *Canceller) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flags, id)
}
