package task

import (
	"context"
	"fmt"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/clock"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/traffic"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/output"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/randengine"
	"golang.org/x/sync/errgroup"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：管理时钟、模型、快照服务、输出等组件；模型只由Run所在的goroutine驱动
type Context struct {
	// 时钟
	clock *clock.Clock
	// 交通模型
	model *traffic.Model
	// 模型快照RPC服务
	monitor *traffic.Monitor
	// 统计记录输出，未配置时为nil
	recorder *output.Recorder

	// RPC宿主，为nil则不提供RPC服务
	sidecar *syncer.Sidecar

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化仿真系统的所有组件
// 参数：
//   - rc: 校验后的运行时配置
//   - sidecar: RPC宿主，可以为nil
//
// 返回：初始化完成的Context实例，模型构造失败时返回错误
// 算法说明：
// 1. 根据配置种子创建随机数引擎
// 2. 有初始布局则按布局构造模型，否则随机放置初始车辆
// 3. 创建时钟、快照服务，按需创建统计输出
// 4. 注册RPC服务到sidecar
func NewContext(rc *config.RuntimeConfig, sidecar *syncer.Sidecar) (*Context, error) {
	rng := randengine.New(rc.C.Seed)

	var model *traffic.Model
	var err error
	if layout := rc.All.Road.Layout; layout != "" {
		var cells []entity.Cell
		cells, err = entity.ParseLayout(layout)
		if err != nil {
			return nil, fmt.Errorf("%w: road layout: %v", config.ErrInvalidConfig, err)
		}
		model, err = traffic.NewWithRoad(rc.Model, rng, cells)
	} else {
		model, err = traffic.New(rc.Model, rng)
	}
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		clock:         clock.New(rc.C.Step),
		model:         model,
		monitor:       traffic.NewMonitor(rc.C.SnapshotWidth),
		sidecar:       sidecar,
		runtimeConfig: rc,
	}
	if rc.All.Output.URI != "" {
		ctx.recorder = output.New(rc.All.Output)
	}

	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		ctx.monitor.Register(ctx.sidecar)
	}
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Model() *traffic.Model {
	return ctx.model
}

// Init 初始化
// 功能：重置时钟，输出模型初始状态，并发布初始快照
func (ctx *Context) Init() {
	ctx.clock.Init()
	p := ctx.model.Params()
	log.Infof("Road: %d cells", p.RoadLength)
	log.Infof("Vehicle: %d initial, max speed %d", ctx.model.Statistics().Occupied, p.MaxSpeed)
	log.Infof("Slow probability: %v, entry probability: %v", p.SlowProbability, p.EntryProbability)
	log.Infof("Steps: %d", ctx.clock.END_STEP-ctx.clock.START_STEP)
	ctx.monitor.Publish(ctx.model)
}

// Run 运行
// 功能：启动RPC服务（如果有）并驱动模型直到结束步或runCtx被取消
// 返回：RPC服务或模拟循环的错误；被取消时返回runCtx的错误
func (ctx *Context) Run(runCtx context.Context) error {
	ctx.Init()

	g, gctx := errgroup.WithContext(runCtx)
	if ctx.sidecar != nil {
		g.Go(func() error {
			if err := ctx.sidecar.Serve(); err != nil {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer ctx.Close()
		return ctx.loop(gctx)
	})
	return g.Wait()
}

// Close 关闭RPC服务与统计输出
func (ctx *Context) Close() {
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
	}
	if ctx.recorder != nil {
		if err := ctx.recorder.Close(context.Background()); err != nil {
			log.Errorf("failed to close recorder: %v", err)
		}
	}
}
