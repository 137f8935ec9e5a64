package events

import (
	"context"
	"sync"
)

// MemorySink 把事件写入进程内通道，主要用于开发与测试。
// 缓冲写满时丢弃最旧的事件而不是阻塞流水线。
type MemorySink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewMemorySink 创建内存事件通道。
func NewMemorySink(buffer int) *MemorySink {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemorySink{ch: make(chan Event, buffer)}
}

// Publish 实现 Sink 接口。
func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for {
		select {
		case s.ch <- event:
			return nil
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Events 返回只读的事件通道。
func (s *MemorySink) Events() <-chan Event {
	return s.ch
}

// Close 关闭通道，后续 Publish 变为空操作。
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

var _ Sink = (*MemorySink)(nil)
