package publish

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSDialTimeout  = 5 * time.Second
	defaultNATSFlushTimeout = 10 * time.Second
)

// NATS 通过 core NATS 投递消息：subject = topic，key 放在 header 里。
// Flush 是一次 PING/PONG 往返，返回即表示 server 已收到之前的全部消息。
type NATS struct {
	DialTimeout  time.Duration
	FlushTimeout time.Duration
}

func (NATS) Name() string { return "nats" }

func (n NATS) Dial(_ context.Context, t Target) (Sink, error) {
	if len(t.Brokers) == 0 {
		return nil, errors.New("nats sink 至少需要一个 server 地址")
	}
	dialTimeout := n.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultNATSDialTimeout
	}
	flushTimeout := n.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultNATSFlushTimeout
	}

	nc, err := nats.Connect(strings.Join(t.Brokers, ","),
		nats.Name("boxoffice"),
		nats.Timeout(dialTimeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, err
	}
	return &natsSink{nc: nc, flushTimeout: flushTimeout}, nil
}

type natsSink struct {
	nc           *nats.Conn
	flushTimeout time.Duration
}

func (s *natsSink) Send(_ context.Context, msg Message) error {
	return s.nc.PublishMsg(&nats.Msg{
		Subject: msg.Topic,
		Data:    msg.Value,
		Header:  nats.Header{"key": []string{string(msg.Key)}},
	})
}

func (s *natsSink) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return s.nc.FlushWithContext(ctx)
	}
	return s.nc.FlushTimeout(s.flushTimeout)
}

func (s *natsSink) Close() error {
	s.nc.Close()
	return nil
}
