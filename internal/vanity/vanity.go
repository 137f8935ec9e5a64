package vanity

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	xerrors "OpenMint-Chain/internal/errors"
)

// CodeSearchExhausted 表示在尝试上限内未找到满足条件的地址。
const CodeSearchExhausted xerrors.Code = "VANITY_SEARCH_EXHAUSTED"

// ErrExhausted 在聚合尝试次数达到上限仍未命中时返回。
var ErrExhausted = xerrors.New(CodeSearchExhausted, "vanity search exhausted")

func init() {
	xerrors.Register(CodeSearchExhausted, xerrors.Attributes{
		Message:   "vanity search exhausted",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// Progress 描述一次搜索的进度快照。
type Progress struct {
	Attempts uint64
	Limit    uint64
}

// Observer 在每个进度步长被调用一次。实现可以阻塞或失败，
// 搜索本身不受其影响。
type Observer func(Progress)

// Options 控制一次搜索的行为。
type Options struct {
	// Suffix 是地址 base58 形式必须命中的固定后缀。
	Suffix string
	// MaxAttempts 是聚合在所有 worker 上的尝试上限。
	MaxAttempts uint64
	// ProgressStride 为进度通知的尝试次数间隔，0 表示不通知。
	ProgressStride uint64
	// Workers 为并行生成候选的协程数量，默认为 CPU 核数。
	Workers int
	// Generator 为候选生成器，默认使用 RandomGenerator。
	Generator Generator
	// Observer 接收进度事件，可以为空。
	Observer Observer
}

// Search 并行暴力搜索公钥 base58 形式以指定后缀结尾的密钥对。
//
// 任一 worker 命中后其余 worker 协作停止；聚合尝试次数达到
// MaxAttempts 仍未命中时返回 ErrExhausted。进度事件按照尝试次数
// 非递减的顺序投递。
func Search(ctx context.Context, opts Options) (Keypair, error) {
	suffix := opts.Suffix
	if suffix == "" {
		return Keypair{}, xerrors.New(xerrors.CodeInvalidArgument, "后缀不能为空")
	}
	limit := opts.MaxAttempts
	if limit == 0 {
		return Keypair{}, xerrors.New(xerrors.CodeInvalidArgument, "尝试上限不能为零")
	}
	gen := opts.Generator
	if gen == nil {
		gen = RandomGenerator{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	var (
		attempts atomic.Uint64
		stopped  atomic.Bool
		wg       sync.WaitGroup

		resultCh = make(chan Keypair, 1)
		errCh    = make(chan error, 1)

		notifier = progressNotifier{observer: opts.Observer, stride: opts.ProgressStride, limit: limit}
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				// 协作取消点：只在候选生成的边界检查信号。
				if stopped.Load() || ctx.Err() != nil {
					return
				}
				n := attempts.Add(1)
				if n > limit {
					return
				}
				candidate, err := gen.Generate()
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					stopped.Store(true)
					return
				}
				if strings.HasSuffix(candidate.Address(), suffix) {
					select {
					case resultCh <- candidate:
					default:
					}
					stopped.Store(true)
					return
				}
				notifier.maybeNotify(n)
			}
		}()
	}

	wg.Wait()

	select {
	case winner := <-resultCh:
		return winner, nil
	default:
	}
	select {
	case err := <-errCh:
		return Keypair{}, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return Keypair{}, err
	}
	return Keypair{}, ErrExhausted
}

// progressNotifier 串行化进度事件，保证尝试次数单调不减。
type progressNotifier struct {
	mu       sync.Mutex
	observer Observer
	stride   uint64
	limit    uint64
	reported uint64
}

func (p *progressNotifier) maybeNotify(attempts uint64) {
	if p.observer == nil || p.stride == 0 || attempts%p.stride != 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if attempts <= p.reported {
		return
	}
	p.reported = attempts
	p.emit(attempts)
}

func (p *progressNotifier) emit(attempts uint64) {
	// 观察者失败不能中断搜索。
	defer func() { _ = recover() }()
	p.observer(Progress{Attempts: attempts, Limit: p.limit})
}
