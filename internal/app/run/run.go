package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/config"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/csvout"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/extract"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/fetch"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/infra/cache"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/infra/httpx"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/normalize"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/publish"
)

// Execute 按 fetch → extract → normalize → write → publish 的顺序执行一次运行，
// 并返回对外稳定的 RunReport。
//
// 任何阶段的错误都被“降级”为该阶段的 failed/degraded 结果，后续阶段照常执行：
// 页面拿不到时依然写出只有表头的 CSV，publish 在空集合时跳过。
// obs 可以为 nil。
func Execute(ctx context.Context, eff config.EffectiveConfig, sinks publish.Registry, obs Observer) domain.RunReport {
	if obs == nil {
		obs = nopObserver{}
	}
	obs.OnStart(eff)

	rr := domain.RunReport{
		URL:       eff.URL,
		Output:    eff.Output,
		StartedAt: time.Now().UTC(),
		Stages:    make([]domain.StageResult, 0, 5),
	}
	done := func(res domain.StageResult, started time.Time) {
		res.DurationMS = time.Since(started).Milliseconds()
		rr.Stages = append(rr.Stages, res)
		obs.OnStageDone(res)
	}

	store := cache.New(eff.CacheDir)

	started := time.Now()
	html, res := fetchStage(ctx, eff, store)
	done(res, started)

	started = time.Now()
	table, res := extractStage(html, eff.TableSelector)
	done(res, started)
	rr.Summary.Extracted = len(table.Rows)

	started = time.Now()
	norm := normalize.Partition(table.Rows)
	res = domain.StageResult{
		Name:   domain.StageNormalize,
		Status: domain.StatusOK,
		In:     len(table.Rows),
		Out:    len(norm.Records),
	}
	if len(norm.Rejects) > 0 {
		res.Status = domain.StatusDegraded
		res.ErrorCode = domain.ErrCodeRowsRejected
		res.ErrorMsg = fmt.Sprintf("%d 行缺少 rank/gross/year，已丢弃", len(norm.Rejects))
		for _, rej := range norm.Rejects {
			obs.OnReject(rej)
		}
	}
	done(res, started)
	rr.Rejects = norm.Rejects
	rr.Summary.Valid = len(norm.Records)
	rr.Summary.Rejected = len(norm.Rejects)

	started = time.Now()
	res = domain.StageResult{
		Name:   domain.StageWrite,
		Status: domain.StatusOK,
		In:     len(norm.Records),
		Out:    len(norm.Records),
	}
	if err := csvout.WriteFile(eff.Output, norm.Records); err != nil {
		res.Status = domain.StatusFailed
		res.Out = 0
		res.ErrorCode = domain.ErrCodeWriteFailed
		res.ErrorMsg = fmt.Sprintf("写入 %s 失败：%v", eff.Output, err)
	}
	done(res, started)

	started = time.Now()
	published, res := publishStage(ctx, eff, sinks, norm.Records)
	done(res, started)
	rr.Summary.Published = published

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// fetchStage 获取页面：replay 模式读取 cache 快照，否则发起一次 GET。
// 成功抓取且启用 cache 时，页面会被快照到 cache 目录（快照失败不影响本次运行）。
func fetchStage(ctx context.Context, eff config.EffectiveConfig, store cache.Store) ([]byte, domain.StageResult) {
	res := domain.StageResult{Name: domain.StageFetch, Status: domain.StatusOK, In: 1}

	if eff.Replay {
		b, ok, err := store.ReadPage()
		switch {
		case err != nil:
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeFetchFailed
			res.ErrorMsg = fmt.Sprintf("读取页面快照失败：%v", err)
			return nil, res
		case !ok:
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeReplayMissing
			res.ErrorMsg = fmt.Sprintf("页面快照不存在：%s（先不带 --replay 运行一次）", store.PagePath())
			return nil, res
		}
		res.Out = 1
		return b, res
	}

	client, err := httpx.NewPageClient(eff.ProxyURL, eff.Timeout)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeConfigInvalid
		res.ErrorMsg = fmt.Sprintf("proxy.url 无效：%v", err)
		return nil, res
	}

	b, err := fetch.Page(ctx, client, eff.URL)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeFetchFailed
		if fetch.IsHTTPStatus(err) {
			res.ErrorCode = domain.ErrCodeHTTPStatus
		}
		res.ErrorMsg = humanizeFetchError(err)
		return nil, res
	}
	res.Out = 1

	if store.Enabled() {
		_ = store.WritePage(b)
	}
	return b, res
}

func extractStage(html []byte, selector string) (extract.Table, domain.StageResult) {
	res := domain.StageResult{Name: domain.StageExtract, Status: domain.StatusOK}
	if len(html) == 0 {
		res.Status = domain.StatusSkipped
		return extract.Table{}, res
	}
	res.In = 1

	table, err := extract.Parse(html, selector)
	if err != nil {
		res.Status = domain.StatusDegraded
		res.ErrorCode = domain.ErrCodeParseFailed
		res.ErrorMsg = fmt.Sprintf("HTML 解析失败：%v", err)
		return extract.Table{}, res
	}
	if !table.Found {
		res.Status = domain.StatusDegraded
		res.ErrorCode = domain.ErrCodeTableNotFound
		res.ErrorMsg = fmt.Sprintf("页面中没有匹配 %q 的表格（站点结构可能变化）", selector)
		return table, res
	}
	res.Out = len(table.Rows)
	return table, res
}

func publishStage(ctx context.Context, eff config.EffectiveConfig, sinks publish.Registry, records []domain.Record) (int, domain.StageResult) {
	res := domain.StageResult{Name: domain.StagePublish, Status: domain.StatusOK, In: len(records)}
	if len(records) == 0 {
		res.Status = domain.StatusSkipped
		return 0, res
	}

	dialer, ok := sinks.Get(eff.Sink)
	if !ok {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodePublishConnectFailed
		res.ErrorMsg = fmt.Sprintf("未知 sink：%q", eff.Sink)
		return 0, res
	}

	p := publish.Publisher{
		Dialer:   dialer,
		Target:   publish.Target{Topic: eff.Topic, Brokers: eff.Brokers},
		Encoding: eff.Encoding,
	}
	n, err := p.Publish(ctx, records)
	res.Out = n
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodePublishFailed
		if publish.PhaseOf(err) == publish.PhaseConnect {
			res.ErrorCode = domain.ErrCodePublishConnectFailed
		}
		res.ErrorMsg = err.Error()
	}
	return n, res
}

func humanizeFetchError(err error) string {
	var hs *fetch.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("站点返回 HTTP %d（可能触发反爬/限流）。建议配置 proxy.url，或用 --replay 读取上次的快照。", hs.StatusCode)
		case 404:
			return "站点返回 HTTP 404（页面可能已改名/删除）。"
		default:
			return fmt.Sprintf("站点返回 HTTP %d。", hs.StatusCode)
		}
	}
	if errors.Is(err, fetch.ErrEmptyBody) {
		return "站点返回了空页面。"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("抓取超时：%v", err)
	}
	return fmt.Sprintf("抓取失败：%v", err)
}
