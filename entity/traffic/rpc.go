package traffic

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName 交通模型只读查询服务名
	ServiceName = "nasch.v1.TrafficService"
	// GetStatisticsProcedure 获取统计结果
	GetStatisticsProcedure = "/" + ServiceName + "/GetStatistics"
	// GetRoadProcedure 获取道路快照
	GetRoadProcedure = "/" + ServiceName + "/GetRoad"
)

// Monitor 模型快照的只读RPC服务
// 功能：由驱动模型的goroutine在每步后发布快照，RPC只读取快照，从不访问模型本身
type Monitor struct {
	mtx   sync.RWMutex
	stats Statistics
	cells []entity.Cell
	width int // 文本快照显示的元胞数，不为正则显示全部
}

// NewMonitor 创建快照服务
func NewMonitor(width int) *Monitor {
	return &Monitor{width: width}
}

// Publish 发布模型当前的统计结果与道路快照
// 说明：必须在驱动模型的goroutine中调用
func (m *Monitor) Publish(model *Model) {
	stats, cells := model.Statistics(), model.Road()
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.stats, m.cells = stats, cells
}

func (m *Monitor) snapshot() (Statistics, []entity.Cell) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.stats, m.cells
}

// Register 将TrafficService注册到sidecar
// 说明：快照自带读写锁，不需要sidecar的步进锁
func (m *Monitor) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		ServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return m.NewHandler(opts...)
		},
		syncer.WithNoLock(),
	)
}

// NewHandler 构建TrafficService的HTTP处理器
// 返回：服务路径前缀与处理器
func (m *Monitor) NewHandler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetStatisticsProcedure, connect.NewUnaryHandler(GetStatisticsProcedure, m.GetStatistics, opts...))
	mux.Handle(GetRoadProcedure, connect.NewUnaryHandler(GetRoadProcedure, m.GetRoad, opts...))
	return "/" + ServiceName + "/", mux
}

// GetStatistics 获取最近一次发布的统计结果
func (m *Monitor) GetStatistics(ctx context.Context, in *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	stats, _ := m.snapshot()
	res, err := structpb.NewStruct(stats.toMap())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode statistics: %v", err))
	}
	return connect.NewResponse(res), nil
}

// GetRoad 获取最近一次发布的道路快照
// 返回：step-已模拟步数，cells-每个元胞的速度（空元胞为null），text-文本快照
func (m *Monitor) GetRoad(ctx context.Context, in *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	stats, cells := m.snapshot()
	res, err := structpb.NewStruct(map[string]any{
		"step": stats.ElapsedSteps,
		"cells": lo.Map(cells, func(c entity.Cell, _ int) any {
			if v, ok := c.Speed(); ok {
				return v
			}
			return nil
		}),
		"text": entity.Render(cells, m.width),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode road: %v", err))
	}
	return connect.NewResponse(res), nil
}

func (s Statistics) toMap() map[string]any {
	return map[string]any{
		"average_speed":    s.AverageSpeed,
		"flow_rate":        s.FlowRate,
		"congestion_count": s.CongestionCount,
		"entered":          s.Entered,
		"exited":           s.Exited,
		"elapsed_steps":    s.ElapsedSteps,
		"occupied":         s.Occupied,
		"density":          s.Density,
	}
}
