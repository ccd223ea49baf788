package run

import (
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/config"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

// Observer 用于把“运行进度/阶段结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出；事件按阶段顺序在同一个 goroutine 内发出。
type Observer interface {
	// OnStart 在 Execute 开始时调用一次。
	OnStart(eff config.EffectiveConfig)
	// OnStageDone 在每个阶段结束时调用（包括 skipped）。
	OnStageDone(res domain.StageResult)
	// OnReject 在 normalize 阶段每丢弃一行时调用（按源顺序）。
	OnReject(rej domain.Reject)
}

// nopObserver 让 Execute 内部不必到处判空。
type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnStageDone(domain.StageResult) {}
func (nopObserver) OnReject(domain.Reject)         {}
