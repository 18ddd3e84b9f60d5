package helper

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// 非密码学随机数，仅用于模拟流量等场景；公平性相关随机数必须使用 crypto/rand
var (
	rndMu sync.Mutex
	rnd   = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
)

// GenerateRandNum 返回 [min, max) 区间的随机整数，max <= min 时返回 min
func GenerateRandNum(min, max int) int {
	if max <= min {
		return min
	}
	rndMu.Lock()
	defer rndMu.Unlock()
	return min + rnd.Intn(max-min)
}

// PickString 从候选中随机挑选一个，候选为空返回空串
func PickString(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[GenerateRandNum(0, len(items))]
}
