package task

import (
	"context"
	"flag"

	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/output"
)

const (
	SelfName = "nasch" // 本程序在RPC宿主中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并定期输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.Tick()

	if *heartBeatInterval > 0 && ctx.clock.CurrentStep()%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f)",
			ctx.clock.CurrentStep(),
			hour, minute, second,
		)
	}
}

// update 更新阶段，每步执行一次
// 功能：推进模型一步，然后发布快照、写入统计记录、按间隔输出道路快照
// 算法说明：
// 1. 模型推进：执行NS规则、进车、统计
// 2. 快照发布：供RPC读取
// 3. 统计输出：写入失败只记录错误，不中断模拟
// 4. 道路快照：第1步起每snapshot_interval步输出一次，最后一步总是输出
func (ctx *Context) update(runCtx context.Context) {
	ctx.model.Step()
	ctx.monitor.Publish(ctx.model)

	stats := ctx.model.Statistics()
	if ctx.recorder != nil {
		rec := output.NewRecord(ctx.clock.CurrentStep(), ctx.clock.CurrentTime(), stats)
		if err := ctx.recorder.Add(runCtx, rec); err != nil {
			log.Errorf("step %d: %v", ctx.clock.CurrentStep(), err)
		}
	}

	c := ctx.runtimeConfig.C
	elapsed := int32(stats.ElapsedSteps)
	isLast := elapsed == c.Step.Total
	if isLast || (c.SnapshotInterval > 0 && (elapsed-1)%c.SnapshotInterval == 0) {
		log.Infof("Step %3d: %s", elapsed, entity.Render(ctx.model.Road(), c.SnapshotWidth))
	}
}

// loop 模拟循环，直到时钟到达结束步
func (ctx *Context) loop(runCtx context.Context) error {
	for !ctx.clock.Done() {
		select {
		case <-runCtx.Done():
			log.Warnf("engine stopped at step %d: %v", ctx.clock.CurrentStep(), runCtx.Err())
			ctx.report()
			return runCtx.Err()
		default:
		}
		ctx.prepare()
		log.Debugf("step %d: prepare complete", ctx.clock.CurrentStep())
		ctx.update(runCtx)
		log.Debugf("step %d: update complete", ctx.clock.CurrentStep())
	}
	log.Infof("engine complete")
	ctx.report()
	return nil
}

// report 输出最终统计结果
func (ctx *Context) report() {
	s := ctx.model.Statistics()
	log.Infof("Average speed: %.3f cells/step", s.AverageSpeed)
	log.Infof("Flow rate: %.3f vehicles/step", s.FlowRate)
	log.Infof("Congestions detected: %d", s.CongestionCount)
	log.Infof("Vehicles entered: %d", s.Entered)
	log.Infof("Vehicles exited: %d", s.Exited)
	log.Infof("Steps simulated: %d", s.ElapsedSteps)
}
