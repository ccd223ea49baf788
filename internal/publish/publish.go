// Package publish 把每条 Record 作为一条独立消息投递到 pub/sub topic。
//
// 约束：
// - 记录集合为空时直接返回，不建立任何连接
// - 每条记录单独序列化为一条消息，不合并、不修改记录
// - 全部提交后必须 Flush，直到 transport 确认整批送达才返回
// - 不做重试：单次连接、单次投递
package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

const (
	PhaseConnect = "connect"
	PhaseEncode  = "encode"
	PhaseSend    = "send"
	PhaseFlush   = "flush"
)

// Message 是一条待投递的消息。
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Sink 是一次投递会话（由 Dialer 建立）。Send 只负责提交，送达确认由 Flush 负责。
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Flush(ctx context.Context) error
	Close() error
}

// Target 描述投递目标。
type Target struct {
	Topic   string
	Brokers []string
}

// Dialer 建立到某种 broker 的会话；Name 用于 Registry 索引。
type Dialer interface {
	Name() string
	Dial(ctx context.Context, t Target) (Sink, error)
}

// Error 是 publish 阶段的可追溯错误；Phase 区分“连不上”与“发送/确认失败”。
type Error struct {
	Sink  string
	Phase string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink=%s phase=%s: %v", e.Sink, e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PhaseOf 从 error 中提取 Phase；若不是 *Error 则返回空串。
func PhaseOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// Registry 是 Dialer 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Dialer
}

func NewRegistry(dialers ...Dialer) (Registry, error) {
	byName := make(map[string]Dialer, len(dialers))
	for _, d := range dialers {
		if d == nil {
			return Registry{}, fmt.Errorf("dialer 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(d.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("dialer.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 sink：%q", name)
		}
		byName[name] = d
	}
	return Registry{byName: byName}, nil
}

// DefaultRegistry 注册内置的 kafka 与 nats sink。
func DefaultRegistry() Registry {
	r, _ := NewRegistry(Kafka{}, NATS{})
	return r
}

func (r Registry) Get(name string) (Dialer, bool) {
	if r.byName == nil {
		return nil, false
	}
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Publisher 组合 Dialer + Target + 编码方式。
type Publisher struct {
	Dialer   Dialer
	Target   Target
	Encoding string // json（默认）/ msgpack
}

// Publish 逐条提交 records，然后 Flush 等待整批确认。
// 返回值 n 是已确认送达的消息数：Flush 成功时等于 len(records)，否则为 0。
func (p Publisher) Publish(ctx context.Context, records []domain.Record) (n int, err error) {
	if len(records) == 0 {
		return 0, nil
	}
	if p.Dialer == nil {
		return 0, &Error{Phase: PhaseConnect, Err: errors.New("dialer 不能为空")}
	}
	name := p.Dialer.Name()
	if strings.TrimSpace(p.Target.Topic) == "" {
		return 0, &Error{Sink: name, Phase: PhaseConnect, Err: errors.New("topic 不能为空")}
	}

	sink, err := p.Dialer.Dial(ctx, p.Target)
	if err != nil {
		return 0, &Error{Sink: name, Phase: PhaseConnect, Err: err}
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = &Error{Sink: name, Phase: PhaseFlush, Err: cerr}
			n = 0
		}
	}()

	for _, r := range records {
		value, err := Encode(p.Encoding, r)
		if err != nil {
			return 0, &Error{Sink: name, Phase: PhaseEncode, Err: err}
		}
		msg := Message{
			Topic: p.Target.Topic,
			Key:   []byte(strconv.Itoa(r.Rank)),
			Value: value,
		}
		if err := sink.Send(ctx, msg); err != nil {
			return 0, &Error{Sink: name, Phase: PhaseSend, Err: err}
		}
	}
	if err := sink.Flush(ctx); err != nil {
		return 0, &Error{Sink: name, Phase: PhaseFlush, Err: err}
	}
	return len(records), nil
}
