// Package fairness 可证明公平承诺：开局前生成服务端种子与秘密值，只公开哈希，结束后揭晓
package fairness

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/big"

	"mpg-server/internal/game"
	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/pkg/errors"
)

const (
	ClientSeedMin = 10_000_000
	ClientSeedMax = 99_999_999

	seedBytes = 32
)

var ErrHashMismatch = errors.New("secret hash mismatch")

// Committer 生成并持久化承诺
type Committer struct {
	rand io.Reader
}

func NewCommitter() *Committer { return &Committer{rand: rand.Reader} }

// NewCommitterWithReader 指定随机源（测试用）
func NewCommitterWithReader(r io.Reader) *Committer { return &Committer{rand: r} }

// Create 在开局事务中生成承诺并写入，返回时已持久化
func (c *Committer) Create(ctx context.Context, tx store.Tx, g game.Game) (*model.Commitment, error) {
	seed := make([]byte, seedBytes)
	if _, err := io.ReadFull(c.rand, seed); err != nil {
		return nil, errors.Wrap(err, "read server seed")
	}
	clientSeed, err := ClientSeed(c.rand)
	if err != nil {
		return nil, err
	}
	serverSeed := hex.EncodeToString(seed)
	secret := g.MakeSecret([]byte(serverSeed))

	cm := &model.Commitment{
		GameType:   g.Type(),
		ServerSeed: serverSeed,
		Secret:     secret,
		SecretHash: Commit(serverSeed, secret),
		ClientSeed: clientSeed,
	}
	if err := tx.InsertCommitment(ctx, cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// ClientSeed 在 [10000000, 99999999] 内均匀取值
func ClientSeed(r io.Reader) (int64, error) {
	n, err := rand.Int(r, big.NewInt(ClientSeedMax-ClientSeedMin+1))
	if err != nil {
		return 0, errors.Wrap(err, "read client seed")
	}
	return ClientSeedMin + n.Int64(), nil
}

// Commit HMAC-SHA256(server_seed, secret) 十六进制
// 秘密值空间可能很小（如轮盘 0..36），必须以服务端种子为密钥，否则结束前可被穷举
func Commit(serverSeed, secret string) string {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 由服务端种子重新推导秘密值并校验哈希
func Verify(g game.Game, c *model.Commitment) error {
	secret := g.MakeSecret([]byte(c.ServerSeed))
	if secret != c.Secret || !hmac.Equal([]byte(Commit(c.ServerSeed, secret)), []byte(c.SecretHash)) {
		return ErrHashMismatch
	}
	return nil
}

// View 对外公开的承诺视图
type View struct {
	CommitmentID int64  `json:"commitment_id"`
	RoundID      int64  `json:"round_id"`
	GameType     string `json:"game_type"`
	SecretHash   string `json:"secret_hash"`
	ClientSeed   int64  `json:"client_seed"`
	Revealed     bool   `json:"revealed"`
	ServerSeed   string `json:"server_seed,omitempty"`
	Secret       string `json:"secret,omitempty"`
}

// Reveal 回合结束前只返回哈希与客户端种子
func Reveal(c *model.Commitment, r *model.Round, nowMs int64) View {
	v := View{
		CommitmentID: c.ID,
		RoundID:      r.ID,
		GameType:     c.GameType,
		SecretHash:   c.SecretHash,
		ClientSeed:   c.ClientSeed,
	}
	if r.IsClosedAt(nowMs) {
		v.Revealed = true
		v.ServerSeed = c.ServerSeed
		v.Secret = c.Secret
	}
	return v
}
