package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	log "mpg-server/common/logger"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"go.uber.org/zap"
)

// Publisher 消息发送门面
type Publisher interface {
	Publish(ctx context.Context, topic, tag string, body []byte) error
}

// Options 生产者配置
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Topics    []string
}

var (
	mu      sync.Mutex
	enabled bool
	prod    rmq.Producer
	pub     Publisher = &stubPublisher{}
)

// Enabled 是否已启用真实生产者
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// PublisherInstance 返回当前生产者（未启用时为丢弃型 stub）
func PublisherInstance() Publisher {
	mu.Lock()
	defer mu.Unlock()
	return pub
}

// 基于 RocketMQ v5 客户端的发送实现
type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(ctx context.Context, topic, tag string, body []byte) error {
	msg := &rmq.Message{Topic: topic, Body: body}
	if tag != "" {
		msg.SetTag(tag)
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.p.Send(c, msg)
	return err
}

// MQ 未启用时使用
type stubPublisher struct{}

func (s *stubPublisher) Publish(ctx context.Context, topic, tag string, body []byte) error {
	log.Warn("[mq disabled] drop message", zap.String("topic", topic), zap.String("tag", tag))
	return nil
}

// sanitizeEndpoint 去掉协议前缀，多个地址时取第一个
func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

// Init 启动生产者；配置缺失或启动失败时保持 stub，不阻塞服务启动
func Init(opts Options) {
	// 使用 SDK 的 ResetLogger 避免默认写入 /logs
	rmq.ResetLogger()

	endpoint := sanitizeEndpoint(opts.Endpoint)
	if endpoint == "" {
		log.Info("rocketmq disabled: empty endpoint")
		return
	}
	// 缺少凭证时禁用（避免底层 SDK 在 Sign 阶段空指针崩溃）
	if strings.TrimSpace(opts.AccessKey) == "" || strings.TrimSpace(opts.SecretKey) == "" {
		log.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	cfg := &rmq.Config{
		Endpoint:    endpoint,
		Credentials: &credentials.SessionCredentials{AccessKey: opts.AccessKey, AccessSecret: opts.SecretKey},
	}
	var popts []rmq.ProducerOption
	if len(opts.Topics) > 0 {
		topics := make([]string, 0, len(opts.Topics))
		for _, t := range opts.Topics {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		popts = append(popts, rmq.WithTopics(topics...))
	}

	p, err := rmq.NewProducer(cfg, popts...)
	if err != nil {
		log.Error("rocketmq: producer init failed", zap.Error(err))
		return
	}

	// 异步启动，最多等待 2 秒
	startDone := make(chan error, 1)
	go func() { startDone <- p.Start() }()

	select {
	case err := <-startDone:
		if err != nil {
			log.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			return
		}
	case <-time.After(2 * time.Second):
		log.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		return
	}

	mu.Lock()
	prod, pub, enabled = p, &rmqPublisher{p: p}, true
	mu.Unlock()
	log.Info("rocketmq enabled", zap.String("endpoint", endpoint), zap.Strings("topics", opts.Topics))
}

// Shutdown 优雅停止生产者
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if prod != nil {
		_ = prod.GracefulStop()
		prod, pub, enabled = nil, &stubPublisher{}, false
	}
}
