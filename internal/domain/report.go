package domain

import (
	"encoding/json"
	"time"
)

const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageWrite     = "write"
	StagePublish   = "publish"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

const (
	ErrCodeFetchFailed          = "fetch_failed"
	ErrCodeHTTPStatus           = "http_status"
	ErrCodeReplayMissing        = "replay_missing"
	ErrCodeTableNotFound        = "table_not_found"
	ErrCodeParseFailed          = "parse_failed"
	ErrCodeRowsRejected         = "rows_rejected"
	ErrCodeWriteFailed          = "write_failed"
	ErrCodePublishConnectFailed = "publish_connect_failed"
	ErrCodePublishFailed        = "publish_failed"
	ErrCodeConfigInvalid        = "config_invalid"
)

// RunReport 是一次运行的结构化结果（report.json 的结构）。
//
// 约束：运行本身永远“完成”；各阶段的降级/失败只体现在 Stages 与 Summary 中，
// 调用方据此判断“0 条结果”到底是站点改版还是真的没有数据。
type RunReport struct {
	URL    string `json:"url"`
	Output string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Stages  []StageResult `json:"stages"`
	Rejects []Reject      `json:"rejects"`
}

type ReportSummary struct {
	Status    string `json:"status"` // ok / degraded
	Extracted int    `json:"extracted"`
	Valid     int    `json:"valid"`
	Rejected  int    `json:"rejected"`
	Published int    `json:"published"`
}

// StageResult 描述单个阶段的执行结果。
type StageResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	In        int    `json:"in"`
	Out       int    `json:"out"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	DurationMS int64 `json:"duration_ms"`
}

// Stage 按名称查找阶段结果；不存在时返回零值与 false。
func (r RunReport) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Failed 报告是否存在 failed 状态的阶段。
func (r RunReport) Failed() bool {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary.status 由 stages 计算得出：任一阶段 degraded/failed 即为 degraded
//
// 计数字段由 runner 在各阶段结束时填写，这里不重算。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Stages == nil {
		r.Stages = []StageResult{}
	}
	if r.Rejects == nil {
		r.Rejects = []Reject{}
	}

	status := StatusOK
	for _, s := range r.Stages {
		if s.Status == StatusDegraded || s.Status == StatusFailed {
			status = StatusDegraded
			break
		}
	}
	r.Summary.Status = status
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
