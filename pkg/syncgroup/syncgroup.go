package syncgroup

import (
	"sync"
)

type syncGroupFunc func()

// SyncGroup 是 sync.WaitGroup 的包装器，简化 goroutine 生命周期管理。
// Add() 收集函数，Run() 统一启动，自动配对 Add(1)/Done()，
// 避免散落在各处的 wg 调用遗漏 Done()。
type SyncGroup struct {
	wg sync.WaitGroup

	mu           sync.Mutex
	fns          []syncGroupFunc
	runningCount int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个 goroutine 函数。
// 应在 Run() 之前调用；如果上一批 goroutine 还在运行，
// 需要先 WaitAndClear() 再添加下一批。
func (w *SyncGroup) Add(fn syncGroupFunc) {
	if fn == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.runningCount > 0 {
		// 上一批还没结束，拒绝混批（调用方应先 WaitAndClear）
		return
	}
	w.fns = append(w.fns, fn)
}

// Run 启动所有已添加的 goroutine，并清空待启动列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	if w.runningCount > 0 {
		w.mu.Unlock()
		return
	}
	fns := w.fns
	w.fns = nil
	w.runningCount = len(fns)
	w.mu.Unlock()

	for _, fn := range fns {
		w.wg.Add(1)
		go func(doFunc syncGroupFunc) {
			defer func() {
				w.wg.Done()
				w.mu.Lock()
				w.runningCount--
				w.mu.Unlock()
			}()
			doFunc()
		}(fn)
	}
}

// Wait 等待当前批次的所有 goroutine 完成
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

// WaitAndClear 等待所有 goroutine 完成并允许下一批 Add/Run
func (w *SyncGroup) WaitAndClear() {
	w.wg.Wait()
	w.mu.Lock()
	w.fns = nil
	w.mu.Unlock()
}

// RunningCount 返回当前运行中的 goroutine 数量（用于调试）
func (w *SyncGroup) RunningCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runningCount
}
