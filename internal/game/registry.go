package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry 游戏注册表，按 game_type 分发
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

func NewRegistry() *Registry {
	return &Registry{games: map[string]Game{}}
}

// Register 注册游戏；nil 或重复注册返回错误
func (r *Registry) Register(g Game) error {
	if g == nil || g.Type() == "" {
		return errors.New("register nil or untyped game")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[g.Type()]; ok {
		return fmt.Errorf("game %q already registered", g.Type())
	}
	r.games[g.Type()] = g
	return nil
}

// MustRegister 启动期注册，失败视为配置错误直接 panic
func (r *Registry) MustRegister(games ...Game) {
	for _, g := range games {
		if err := r.Register(g); err != nil {
			panic(err)
		}
	}
}

// Lookup 按类型查找游戏
func (r *Registry) Lookup(gameType string) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[gameType]
	if !ok {
		return nil, errors.Wrapf(ErrGameNotRegistered, "game_type=%s", gameType)
	}
	return g, nil
}

// Types 已注册的游戏类型（有序）
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.games))
	for t := range r.games {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
