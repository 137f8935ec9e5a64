package deploy

import (
	"sync"

	"github.com/google/uuid"

	xerrors "OpenMint-Chain/internal/errors"
)

// ErrBusy 表示同一会话已有部署在执行。
var ErrBusy = xerrors.New(CodeBusy, "deployment already in flight")

// Gate 保证每个会话同一时刻至多一条流水线在运行。
// 不同会话的租约相互独立。
type Gate struct {
	mu     sync.Mutex
	leases map[string]string
}

// NewGate 创建准入闸门。
func NewGate() *Gate {
	return &Gate{leases: make(map[string]string)}
}

// Lease 是某个会话的独占执行凭证。Release 幂等。
type Lease struct {
	ID             string
	ConversationID string

	gate *Gate
	once sync.Once
}

// Admit 为会话申请租约；已有租约未释放时返回 ErrBusy。
func (g *Gate) Admit(conversationID string) (*Lease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.leases[conversationID]; held {
		return nil, ErrBusy
	}
	lease := &Lease{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		gate:           g,
	}
	g.leases[conversationID] = lease.ID
	return lease, nil
}

// Release 归还租约。重复调用无副作用。
func (l *Lease) Release() {
	if l == nil || l.gate == nil {
		return
	}
	l.once.Do(func() {
		l.gate.mu.Lock()
		defer l.gate.mu.Unlock()
		if held, ok := l.gate.leases[l.ConversationID]; ok && held == l.ID {
			delete(l.gate.leases, l.ConversationID)
		}
	})
}
