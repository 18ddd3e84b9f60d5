package ledger

import (
	"context"
	"sync"

	"mpg-server/internal/store"

	"github.com/shopspring/decimal"
)

// rollbackTx 支持回滚回调的事务（内存存储实现）
type rollbackTx interface {
	OnRollback(fn func())
}

// Memory 进程内账本，余额变动在所属事务回滚时撤销
type Memory struct {
	mu       sync.Mutex
	balances map[int64]decimal.Decimal
	entries  []MemoryEntry
}

// MemoryEntry 内存流水
type MemoryEntry struct {
	Entry
	Signed decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{balances: map[int64]decimal.Decimal{}}
}

// SetBalance 开户或重置余额
func (m *Memory) SetBalance(accountID int64, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = amount
}

func (m *Memory) Balance(accountID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID]
}

// Entries 返回已生效流水的副本
func (m *Memory) Entries() []MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemoryEntry(nil), m.entries...)
}

func (m *Memory) Debit(ctx context.Context, tx store.Tx, e Entry) error {
	return m.apply(tx, e, e.Amount.Neg())
}

func (m *Memory) Credit(ctx context.Context, tx store.Tx, e Entry) error {
	return m.apply(tx, e, e.Amount)
}

func (m *Memory) apply(tx store.Tx, e Entry, signed decimal.Decimal) error {
	if err := checkAmount(e.Amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.balances[e.AccountID]
	if !ok {
		return ErrAccountNotFound
	}
	after := before.Add(signed).Round(2)
	if after.IsNegative() {
		return ErrInsufficientFunds
	}
	m.balances[e.AccountID] = after
	m.entries = append(m.entries, MemoryEntry{Entry: e, Signed: signed})
	idx := len(m.entries) - 1

	if rt, ok := tx.(rollbackTx); ok {
		rt.OnRollback(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.balances[e.AccountID] = m.balances[e.AccountID].Sub(signed)
			if idx < len(m.entries) {
				m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
			}
		})
	}
	return nil
}
