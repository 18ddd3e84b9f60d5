package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"mpg-server/internal/model"
)

// Memory 进程内存储，用于演示模式与单元测试
// 事务持有全局互斥锁并在数据副本上操作，成功后整体替换；失败时执行回滚回调
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	seq          int64
	rounds       map[int64]*model.Round
	commitments  map[int64]*model.Commitment
	playables    map[int64]*model.Playable
	participants map[int64]*model.ParticipantGame
	settled      map[int64]*model.SettlementLog
	gates        map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		rounds:       map[int64]*model.Round{},
		commitments:  map[int64]*model.Commitment{},
		playables:    map[int64]*model.Playable{},
		participants: map[int64]*model.ParticipantGame{},
		settled:      map[int64]*model.SettlementLog{},
		gates:        map[string]struct{}{},
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:          d.seq,
		rounds:       make(map[int64]*model.Round, len(d.rounds)),
		commitments:  make(map[int64]*model.Commitment, len(d.commitments)),
		playables:    make(map[int64]*model.Playable, len(d.playables)),
		participants: make(map[int64]*model.ParticipantGame, len(d.participants)),
		settled:      make(map[int64]*model.SettlementLog, len(d.settled)),
		gates:        make(map[string]struct{}, len(d.gates)),
	}
	for k, v := range d.rounds {
		c.rounds[k] = v.Clone()
	}
	for k, v := range d.commitments {
		cc := *v
		c.commitments[k] = &cc
	}
	for k, v := range d.playables {
		c.playables[k] = v.Clone()
	}
	for k, v := range d.participants {
		c.participants[k] = v.Clone()
	}
	for k, v := range d.settled {
		l := *v
		c.settled[k] = &l
	}
	for k := range d.gates {
		c.gates[k] = struct{}{}
	}
	return c
}

func (d *memData) nextID() int64 {
	d.seq++
	return d.seq
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{data: m.data.clone()}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	m.data = tx.data
	return nil
}

func (m *Memory) GetRound(ctx context.Context, id int64) (*model.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.latestOpen(gameType, nowMs)
}

func (m *Memory) GetCommitment(ctx context.Context, id int64) (*model.Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.commitments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *Memory) GetPlayable(ctx context.Context, id int64) (*model.Playable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.playables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) ListDueRounds(ctx context.Context, nowMs int64, limit int) ([]model.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []model.Round
	for _, r := range m.data.rounds {
		if r.EndTime > nowMs {
			continue
		}
		p := m.data.playables[r.PlayableID]
		if !r.HasNext() || (p != nil && !p.IsCompleted) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Participants 返回某局全部参与记录的副本（测试与查询用）
func (m *Memory) Participants(roundID int64) []*model.ParticipantGame {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ParticipantGame
	for _, p := range m.data.participants {
		if p.RoundID == roundID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoundsOf 返回某游戏类型全部回合（按ID升序）
func (m *Memory) RoundsOf(gameType string) []*model.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Round
	for _, r := range m.data.rounds {
		if r.GameType == gameType {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *memData) latestOpen(gameType string, nowMs int64) (*model.Round, error) {
	var best *model.Round
	for _, r := range d.rounds {
		if r.GameType != gameType || r.EndTime <= nowMs {
			continue
		}
		if best == nil || r.ID > best.ID {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

type memTx struct {
	data      *memData
	rollbacks []func()
}

// OnRollback 注册回滚回调，供同一事务内的内存账本补偿
func (t *memTx) OnRollback(fn func()) { t.rollbacks = append(t.rollbacks, fn) }

func (t *memTx) rollback() {
	for i := len(t.rollbacks) - 1; i >= 0; i-- {
		t.rollbacks[i]()
	}
	t.rollbacks = nil
}

func nowMilli() int64 { return time.Now().UnixMilli() }

func (t *memTx) LockGate(ctx context.Context, gameType string) error {
	t.data.gates[gameType] = struct{}{}
	return nil
}

func (t *memTx) LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error) {
	return t.data.latestOpen(gameType, nowMs)
}

func (t *memTx) InsertCommitment(ctx context.Context, c *model.Commitment) error {
	c.ID = t.data.nextID()
	if c.CreatedAt == 0 {
		c.CreatedAt = nowMilli()
	}
	cc := *c
	t.data.commitments[c.ID] = &cc
	return nil
}

func (t *memTx) InsertPlayable(ctx context.Context, p *model.Playable) error {
	p.ID = t.data.nextID()
	p.UpdatedAt = nowMilli()
	t.data.playables[p.ID] = p.Clone()
	return nil
}

func (t *memTx) InsertRound(ctx context.Context, r *model.Round) error {
	r.ID = t.data.nextID()
	if r.CreatedAt == 0 {
		r.CreatedAt = nowMilli()
	}
	t.data.rounds[r.ID] = r.Clone()
	return nil
}

func (t *memTx) GetRoundForUpdate(ctx context.Context, id int64) (*model.Round, error) {
	r, ok := t.data.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (t *memTx) SetNextRound(ctx context.Context, roundID, nextID int64) error {
	r, ok := t.data.rounds[roundID]
	if !ok {
		return ErrNotFound
	}
	if r.NextRoundID.Valid {
		return ErrConflict
	}
	r.NextRoundID.Int64, r.NextRoundID.Valid = nextID, true
	return nil
}

func (t *memTx) GetPlayableForUpdate(ctx context.Context, id int64) (*model.Playable, error) {
	p, ok := t.data.playables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) SavePlayable(ctx context.Context, p *model.Playable) error {
	if _, ok := t.data.playables[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = nowMilli()
	t.data.playables[p.ID] = p.Clone()
	return nil
}

func (t *memTx) GetParticipantForUpdate(ctx context.Context, playableID, accountID int64) (*model.ParticipantGame, error) {
	for _, p := range t.data.participants {
		if p.PlayableID == playableID && p.AccountID == accountID {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertParticipant(ctx context.Context, p *model.ParticipantGame) error {
	for _, e := range t.data.participants {
		if e.PlayableID == p.PlayableID && e.AccountID == p.AccountID {
			return ErrDuplicate
		}
	}
	p.ID = t.data.nextID()
	now := nowMilli()
	p.CreatedAt, p.UpdatedAt = now, now
	t.data.participants[p.ID] = p.Clone()
	return nil
}

func (t *memTx) SaveParticipant(ctx context.Context, p *model.ParticipantGame) error {
	if _, ok := t.data.participants[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = nowMilli()
	t.data.participants[p.ID] = p.Clone()
	return nil
}

func (t *memTx) ListParticipantsForUpdate(ctx context.Context, playableID int64) ([]*model.ParticipantGame, error) {
	var out []*model.ParticipantGame
	for _, p := range t.data.participants {
		if p.PlayableID == playableID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertSettlementLog(ctx context.Context, l *model.SettlementLog) error {
	if _, ok := t.data.settled[l.RoundID]; ok {
		return ErrDuplicate
	}
	l.ID = t.data.nextID()
	l.CreatedAt = nowMilli()
	ll := *l
	t.data.settled[l.RoundID] = &ll
	return nil
}
