package traffic

import (
	"fmt"

	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/road"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/config"
)

// Rand 模型所需的随机数源
// 说明：给定相同的种子与调用顺序，模型的演化完全可复现
type Rand interface {
	Sample(n, k int) []int   // 从[0, n)中无放回抽取k个整数
	IntRange(lo, hi int) int // [lo, hi]内均匀整数
	PTrue(p float64) bool    // 以概率p返回true，每次调用消耗一个浮点随机数
}

// Model Nagel-Schreckenberg元胞自动机
// 功能：持有道路状态与统计计数器，Step每次推进一个时间步
// 说明：非线程安全，只能由一个goroutine驱动
type Model struct {
	params config.ModelParams
	rng    Rand
	road   *road.Road

	elapsed     int // 已模拟步数
	entered     int // 累计进入车辆数（含初始车辆）
	exited      int // 累计驶出车辆数
	congestions int // 累计拥堵事件数

	speedSum          int // 累计观测速度之和
	speedObservations int // 累计速度观测次数
}

// New 创建模型并随机放置初始车辆
// 功能：校验参数，在min(初始车辆数, L)个不同位置放置车辆
// 参数：params-模型参数，rng-随机数源
// 返回：模型实例，参数不合法时返回错误
// 算法说明：
// 1. 无放回抽取初始位置
// 2. 按抽取顺序为每辆车在[V_MIN0, V_MAX0]内均匀抽取速度，并截断到V_MAX
// 3. 由元胞序列一次性建立道路，每辆初始车辆计入进入车辆数
func New(params config.ModelParams, rng Rand) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := min(params.InitialCount, params.RoadLength)
	cells := make([]entity.Cell, params.RoadLength)
	for _, pos := range rng.Sample(params.RoadLength, n) {
		cells[pos] = entity.Vehicle(min(rng.IntRange(params.InitialSpeedMin, params.InitialSpeedMax), params.MaxSpeed))
	}
	r, err := road.FromCells(cells)
	if err != nil {
		return nil, err
	}
	log.Debugf("place %d initial vehicles on road of %d cells", n, params.RoadLength)
	return &Model{
		params:  params,
		rng:     rng,
		road:    r,
		entered: n,
	}, nil
}

// NewWithRoad 以给定的初始布局创建模型
// 功能：不进行随机初始化，布局中的每辆车都计入进入车辆数
// 参数：params-模型参数（InitialCount与初始速度范围仅用于入口进车），rng-随机数源，cells-初始元胞
// 返回：模型实例，布局长度与道路长度不符或速度超过V_MAX时返回错误
func NewWithRoad(params config.ModelParams, rng Rand, cells []entity.Cell) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(cells) != params.RoadLength {
		return nil, fmt.Errorf("%w: layout has %d cells, road length is %d", config.ErrInvalidConfig, len(cells), params.RoadLength)
	}
	for i, c := range cells {
		if v, ok := c.Speed(); ok && (v < 0 || v > params.MaxSpeed) {
			return nil, fmt.Errorf("%w: vehicle at cell %d has speed %d out of [0, %d]", config.ErrInvalidConfig, i, v, params.MaxSpeed)
		}
	}
	r, err := road.FromCells(cells)
	if err != nil {
		return nil, err
	}
	return &Model{
		params:  params,
		rng:     rng,
		road:    r,
		entered: r.Occupied(),
	}, nil
}

// Params 模型参数
func (m *Model) Params() config.ModelParams {
	return m.params
}

// Road 当前道路元胞的副本
func (m *Model) Road() []entity.Cell {
	return m.road.Cells()
}

// Elapsed 已模拟步数
func (m *Model) Elapsed() int {
	return m.elapsed
}

// Step 推进一个时间步
// 功能：依次执行NS模型的四条规则，然后处理入口进车并收集统计
// 算法说明：
// 1. 加速：v = min(v+1, V_MAX)
// 2. 减速：v = min(v, 前车间距)，间距按循环方式计算
// 3. 随机慢化：v > 0的车以概率P_SLOW减速1
// 4. 移动：车辆前进v个元胞，越过终点则驶出（开放边界）
// 5. 入口：以概率P_ENTER在元胞0放入新车
// 6. 统计：累计速度，检测拥堵
// 说明：1-3步不改变占用情况，因此间距只需按当前占用计算一次
func (m *Model) Step() {
	m.accelerate()
	m.brake()
	m.randomize()
	m.exited += m.road.Advance()

	m.tryEnter()

	m.collect()
	m.congestions += countCongestions(m.road, m.params.CongestionThreshold)

	m.elapsed++
}

func (m *Model) accelerate() {
	for node := m.road.First(); node != nil; node = node.Next() {
		node.Value = min(node.Value+1, m.params.MaxSpeed)
	}
}

func (m *Model) brake() {
	for node := m.road.First(); node != nil; node = node.Next() {
		node.Value = min(node.Value, m.road.Gap(node))
	}
}

// randomize 按位置顺序，只为速度大于0的车抽取随机数
func (m *Model) randomize() {
	for node := m.road.First(); node != nil; node = node.Next() {
		if node.Value > 0 && m.rng.PTrue(m.params.SlowProbability) {
			node.Value--
		}
	}
}

// tryEnter 入口进车
// 说明：每步总是先抽取一次随机数，再检查元胞0为空且前方有空间
func (m *Model) tryEnter() {
	if m.rng.PTrue(m.params.EntryProbability) && m.road.Cell(0).IsEmpty() && m.road.DistanceAhead(0) > 0 {
		v := m.rng.IntRange(m.params.InitialSpeedMin, min(m.params.InitialSpeedMax, m.params.MaxSpeed))
		m.road.Place(0, v)
		m.entered++
	}
}

// collect 累计本步所有车辆的速度观测
func (m *Model) collect() {
	for node := m.road.First(); node != nil; node = node.Next() {
		m.speedSum += node.Value
		m.speedObservations++
	}
}
