package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

type mockSink struct {
	sent     []Message
	flushed  int
	closed   int
	sendErr  error
	flushErr error
}

func (m *mockSink) Send(_ context.Context, msg Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSink) Flush(context.Context) error {
	m.flushed++
	return m.flushErr
}

func (m *mockSink) Close() error {
	m.closed++
	return nil
}

type stubDialer struct {
	name    string
	sink    *mockSink
	dialErr error

	dials  int
	target Target
}

func (d *stubDialer) Name() string { return d.name }

func (d *stubDialer) Dial(_ context.Context, t Target) (Sink, error) {
	d.dials++
	d.target = t
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.sink, nil
}

func records(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{Rank: i + 1, Title: fmt.Sprintf("Film %d", i+1), GrossUSD: float64(i) + 0.5, ReleaseYear: 2000 + i%20}
	}
	return out
}

func TestPublish_EmptySkipsDial(t *testing.T) {
	d := &stubDialer{name: "stub", sink: &mockSink{}}
	p := Publisher{Dialer: d, Target: Target{Topic: "t", Brokers: []string{"b"}}}

	n, err := p.Publish(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("空集合应直接返回：n=%d err=%v", n, err)
	}
	if d.dials != 0 {
		t.Fatalf("空集合不应建立连接，实际 dial %d 次", d.dials)
	}
}

func TestPublish_500MessagesThenFlush(t *testing.T) {
	sink := &mockSink{}
	d := &stubDialer{name: "stub", sink: sink}
	p := Publisher{Dialer: d, Target: Target{Topic: "films", Brokers: []string{"localhost:9092"}}}

	recs := records(500)
	n, err := p.Publish(context.Background(), recs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 500 || len(sink.sent) != 500 {
		t.Fatalf("期望 500 条消息，实际 n=%d sent=%d", n, len(sink.sent))
	}
	if sink.flushed != 1 || sink.closed != 1 {
		t.Fatalf("期望 Flush/Close 各 1 次，实际 flush=%d close=%d", sink.flushed, sink.closed)
	}
	if d.target.Topic != "films" {
		t.Fatalf("target 未透传：%+v", d.target)
	}

	// 每条消息独立序列化，且顺序与输入一致。
	for i, m := range sink.sent {
		if m.Topic != "films" {
			t.Fatalf("msg[%d] topic=%q", i, m.Topic)
		}
		if string(m.Key) != fmt.Sprint(recs[i].Rank) {
			t.Fatalf("msg[%d] key=%q", i, m.Key)
		}
		var got Payload
		if err := json.Unmarshal(m.Value, &got); err != nil {
			t.Fatalf("msg[%d] 不是合法 JSON：%v", i, err)
		}
		if got != PayloadOf(recs[i]) {
			t.Fatalf("msg[%d] payload 不一致：%+v", i, got)
		}
	}
	if recs[0].Title != "Film 1" {
		t.Fatalf("publish 不应修改输入记录")
	}
}

func TestPublish_DialError(t *testing.T) {
	d := &stubDialer{name: "stub", dialErr: errors.New("connection refused")}
	p := Publisher{Dialer: d, Target: Target{Topic: "t", Brokers: []string{"b"}}}

	n, err := p.Publish(context.Background(), records(3))
	if n != 0 || PhaseOf(err) != PhaseConnect {
		t.Fatalf("期望 connect 阶段失败，实际 n=%d err=%v", n, err)
	}
}

func TestPublish_FlushError(t *testing.T) {
	sink := &mockSink{flushErr: errors.New("not acknowledged")}
	p := Publisher{Dialer: &stubDialer{name: "stub", sink: sink}, Target: Target{Topic: "t"}}

	n, err := p.Publish(context.Background(), records(2))
	if n != 0 || PhaseOf(err) != PhaseFlush {
		t.Fatalf("期望 flush 阶段失败，实际 n=%d err=%v", n, err)
	}
	if sink.closed != 1 {
		t.Fatalf("失败时也必须关闭 sink")
	}
}

func TestPublish_SendError(t *testing.T) {
	sink := &mockSink{sendErr: errors.New("buffer full")}
	p := Publisher{Dialer: &stubDialer{name: "stub", sink: sink}, Target: Target{Topic: "t"}}

	_, err := p.Publish(context.Background(), records(2))
	if PhaseOf(err) != PhaseSend {
		t.Fatalf("期望 send 阶段失败，实际 %v", err)
	}
	if sink.flushed != 0 {
		t.Fatalf("send 失败后不应 flush")
	}
}

func TestPublish_EmptyTopic(t *testing.T) {
	d := &stubDialer{name: "stub", sink: &mockSink{}}
	_, err := Publisher{Dialer: d}.Publish(context.Background(), records(1))
	if err == nil || d.dials != 0 {
		t.Fatalf("空 topic 应在 dial 前失败：err=%v dials=%d", err, d.dials)
	}
}

func TestEncode_JSONKeys(t *testing.T) {
	b, err := Encode("", domain.Record{Rank: 1, Title: "Avatar", GrossUSD: 2923710708, ReleaseYear: 2009})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("不是合法 JSON：%v", err)
	}
	keys := make([]string, 0, len(m))
	for _, k := range []string{"Rank", "Title", "Gross_USD", "Release_Year"} {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(m) != 4 || len(keys) != 4 {
		t.Fatalf("字段名不符合预期：%v", m)
	}
	if m["Title"] != "Avatar" || m["Gross_USD"] != 2923710708.0 {
		t.Fatalf("字段值不符合预期：%v", m)
	}
	if !strings.Contains(string(b), `"Gross_USD":2923710708.0`) {
		t.Fatalf("整数金额也应带小数部分（与 CSV 一致）：%s", b)
	}
}

func TestAmount_MarshalJSON(t *testing.T) {
	cases := map[float64]string{
		2923710708: "2923710708.0",
		0:          "0.0",
		1234.5:     "1234.5",
		2.5e20:     "250000000000000000000.0",
	}
	for in, want := range cases {
		b, err := json.Marshal(Amount(in))
		if err != nil || string(b) != want {
			t.Fatalf("Amount(%v)：期望 %s，实际 %s err=%v", in, want, b, err)
		}
	}
	if _, err := json.Marshal(Amount(math.Inf(1))); err == nil {
		t.Fatalf("Inf 不应编码成功")
	}
}

func TestEncode_Msgpack(t *testing.T) {
	rec := domain.Record{Rank: 2, Title: "Titanic", GrossUSD: 2264743305, ReleaseYear: 1997}
	b, err := Encode(EncodingMsgpack, rec)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got Payload
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("msgpack 解码失败：%v", err)
	}
	if got != PayloadOf(rec) {
		t.Fatalf("msgpack 往返不一致：%+v", got)
	}
}

func TestEncode_Unknown(t *testing.T) {
	if _, err := Encode("xml", domain.Record{}); err == nil {
		t.Fatalf("未知 encoding 应报错")
	}
	if ValidEncoding("xml") || !ValidEncoding("") || !ValidEncoding("MSGPACK") {
		t.Fatalf("ValidEncoding 结果不符合预期")
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"kafka", "NATS"} {
		if _, ok := reg.Get(name); !ok {
			t.Fatalf("默认注册表缺少 %q", name)
		}
	}
	if _, ok := reg.Get("redis"); ok {
		t.Fatalf("不应存在 redis sink")
	}

	if _, err := NewRegistry(&stubDialer{name: "a"}, &stubDialer{name: "A"}); err == nil {
		t.Fatalf("重复 name 应报错")
	}
	if _, err := NewRegistry(&stubDialer{name: " "}); err == nil {
		t.Fatalf("空 name 应报错")
	}

	var empty Registry
	if d, ok := empty.Get("kafka"); ok || d != nil || !reflect.DeepEqual(empty, Registry{}) {
		t.Fatalf("零值注册表不应命中")
	}
}
