// Package pool は受け付けた接続を上限付きのワーカーへ割り当てる
//
// 振り分けの順序:
//   - ワーカー数が CoreSize 未満なら新しいワーカーで即実行
//   - そうでなければ待ち行列へ（ブロックしない）
//   - 待ち行列が満杯で MaxSize 未満ならワーカーを追加
//   - いずれも不可なら Task.OnRejected を呼んで拒否
//
// CoreSize を超えて起動したワーカーは IdleTimeout だけ仕事がなければ終了する。
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrRejected はワーカーと待ち行列が飽和していたことを表す
	ErrRejected = errors.New("pool saturated")
	// ErrPoolClosed はシャットダウン後に投入されたことを表す
	ErrPoolClosed = errors.New("pool closed")
)

// Task はプールで実行される仕事の単位
type Task interface {
	// Execute はワーカー上で同期的に実行される
	Execute()
	// OnRejected は受け入れられなかったときに投入側のゴルーチンで呼ばれる
	OnRejected()
}

// Config はプールのサイズ設定
type Config struct {
	CoreSize    int
	MaxSize     int
	QueueSize   int
	IdleTimeout time.Duration
}

// Stats はプールの状態のスナップショット
type Stats struct {
	Workers   int    `json:"workers"`
	Idle      int    `json:"idle"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Rejected  uint64 `json:"rejected"`
	CoreSize  int    `json:"core_size"`
	MaxSize   int    `json:"max_size"`
	QueueSize int    `json:"queue_size"`
}

// Pool は上限付きワーカープール
type Pool struct {
	cfg    Config
	logger zerolog.Logger

	queue chan Task

	mu      sync.Mutex
	workers int
	closed  bool
	wg      sync.WaitGroup

	idle      atomic.Int64
	completed atomic.Uint64
	rejected  atomic.Uint64
}

// New は新しいプールを作成する
// ワーカーは必要になった時点で起動する
func New(cfg Config, logger zerolog.Logger) *Pool {
	if cfg.CoreSize < 1 {
		cfg.CoreSize = 1
	}
	if cfg.MaxSize < cfg.CoreSize {
		cfg.MaxSize = cfg.CoreSize
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Task, cfg.QueueSize),
	}
}

// Submit はタスクを投入する。呼び出し側をブロックしない
// 拒否した場合は OnRejected を呼んだうえでエラーを返す
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.reject(task)
		return ErrPoolClosed
	}

	if p.workers < p.cfg.CoreSize {
		p.startWorkerLocked(task)
		p.mu.Unlock()
		return nil
	}

	select {
	case p.queue <- task:
		p.mu.Unlock()
		return nil
	default:
	}

	if p.workers < p.cfg.MaxSize {
		p.startWorkerLocked(task)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.reject(task)
	return ErrRejected
}

func (p *Pool) reject(task Task) {
	p.rejected.Add(1)
	task.OnRejected()
}

// startWorkerLocked は mu を保持した状態で呼ぶ
func (p *Pool) startWorkerLocked(first Task) {
	p.workers++
	p.wg.Add(1)
	go p.worker(first)
}

func (p *Pool) worker(first Task) {
	defer p.wg.Done()

	p.run(first)
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.run(task)
	}
}

// next は次のタスクを待つ。false のときワーカーは終了済みとして数えられている
func (p *Pool) next() (Task, bool) {
	for {
		p.idle.Add(1)
		task, ok, timedOut := p.wait()
		p.idle.Add(-1)

		if ok {
			return task, true
		}
		if !timedOut {
			// 待ち行列が閉じられた
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return nil, false
		}

		p.mu.Lock()
		if p.workers > p.cfg.CoreSize {
			p.workers--
			p.mu.Unlock()
			p.logger.Debug().Msg("アイドルワーカーを終了します")
			return nil, false
		}
		p.mu.Unlock()
	}
}

// wait は待ち行列からの受信を待つ
// CoreSize を超えているワーカーだけがタイムアウトする
func (p *Pool) wait() (task Task, ok bool, timedOut bool) {
	p.mu.Lock()
	surplus := p.workers > p.cfg.CoreSize
	p.mu.Unlock()

	if !surplus {
		task, ok = <-p.queue
		return task, ok, false
	}

	select {
	case task, ok = <-p.queue:
		return task, ok, false
	default:
	}

	timer := time.NewTimer(p.cfg.IdleTimeout)
	defer timer.Stop()
	select {
	case task, ok = <-p.queue:
		return task, ok, false
	case <-timer.C:
		return nil, false, true
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("タスクの実行中にpanicが発生しました")
		}
	}()
	task.Execute()
}

// Stats は現在の状態を返す
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	return Stats{
		Workers:   workers,
		Idle:      int(p.idle.Load()),
		Queued:    len(p.queue),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		CoreSize:  p.cfg.CoreSize,
		MaxSize:   p.cfg.MaxSize,
		QueueSize: p.cfg.QueueSize,
	}
}

// Shutdown は新規の投入を止め、待ち行列に残ったタスクを実行し終えるまで待つ
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
