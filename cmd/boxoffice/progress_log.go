package main

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/app/run"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/config"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

var _ run.Observer = (*logObserver)(nil)

// logObserver 把 run 的事件转成结构化日志：每个阶段一行，每个被丢弃的行一条 debug。
type logObserver struct {
	l zerolog.Logger
}

func newLogObserver(l zerolog.Logger) *logObserver {
	return &logObserver{l: l}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.l.Info().
		Str("url", eff.URL).
		Str("output", eff.Output).
		Str("sink", eff.Sink).
		Str("topic", eff.Topic).
		Strs("brokers", eff.Brokers).
		Str("encoding", eff.Encoding).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Bool("replay", eff.Replay).
		Bool("strict", eff.Strict).
		Msg("boxoffice run")
}

func (o *logObserver) OnStageDone(res domain.StageResult) {
	var ev *zerolog.Event
	switch res.Status {
	case domain.StatusFailed:
		ev = o.l.Error()
	case domain.StatusDegraded:
		ev = o.l.Warn()
	default:
		ev = o.l.Info()
	}
	ev = ev.Str("stage", res.Name).
		Str("status", res.Status).
		Int("in", res.In).
		Int("out", res.Out).
		Dur("took", time.Duration(res.DurationMS)*time.Millisecond)
	if res.ErrorCode != "" {
		ev = ev.Str("error_code", res.ErrorCode)
	}
	if res.ErrorMsg != "" {
		ev = ev.Str("error_msg", res.ErrorMsg)
	}
	ev.Msg("阶段完成")
}

func (o *logObserver) OnReject(rej domain.Reject) {
	o.l.Debug().
		Int("index", rej.Index).
		Str("rank", rej.Row.Rank).
		Str("title", truncate(rej.Row.Title, 80)).
		Str("gross", rej.Row.Gross).
		Str("year", rej.Row.Year).
		Strs("reasons", rej.Reasons).
		Msg("丢弃行")
}

// formatProxy 隐藏代理 URL 中的凭据。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "on"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
