package traffic_test

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/traffic"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/randengine"
)

func defaultParams() config.ModelParams {
	return config.ModelParams{
		RoadLength:          1000,
		MaxSpeed:            5,
		SlowProbability:     0.3,
		EntryProbability:    0.3,
		InitialCount:        100,
		InitialSpeedMin:     2,
		InitialSpeedMax:     3,
		CongestionThreshold: 5,
	}
}

// deterministicParams 无随机慢化、无进车的小道路
func deterministicParams(length, maxSpeed int) config.ModelParams {
	return config.ModelParams{
		RoadLength:          length,
		MaxSpeed:            maxSpeed,
		InitialSpeedMin:     1,
		InitialSpeedMax:     1,
		CongestionThreshold: 5,
	}
}

func mustLayout(t *testing.T, params config.ModelParams, layout string) *traffic.Model {
	t.Helper()
	cells, err := entity.ParseLayout(layout)
	require.NoError(t, err)
	m, err := traffic.NewWithRoad(params, randengine.New(0), cells)
	require.NoError(t, err)
	return m
}

func occupied(cells []entity.Cell) int {
	return lo.CountBy(cells, func(c entity.Cell) bool { return !c.IsEmpty() })
}

func TestNew(t *testing.T) {
	params := defaultParams()
	m, err := traffic.New(params, randengine.New(1))
	require.NoError(t, err)

	cells := m.Road()
	assert.Len(t, cells, params.RoadLength)
	assert.Equal(t, params.InitialCount, occupied(cells))
	for _, c := range cells {
		if v, ok := c.Speed(); ok {
			assert.GreaterOrEqual(t, v, params.InitialSpeedMin)
			assert.LessOrEqual(t, v, params.InitialSpeedMax)
		}
	}
	s := m.Statistics()
	assert.Equal(t, params.InitialCount, s.Entered)
	assert.Equal(t, params.InitialCount, s.Occupied)
	assert.InDelta(t, 0.1, s.Density, 1e-9)

	// 初始车辆数超过道路长度时截断
	params = deterministicParams(10, 2)
	params.InitialCount = 50
	m, err = traffic.New(params, randengine.New(1))
	require.NoError(t, err)
	assert.Equal(t, 10, occupied(m.Road()))
	assert.Equal(t, 10, m.Statistics().Entered)

	params.SlowProbability = 2
	_, err = traffic.New(params, randengine.New(1))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewWithRoadErrors(t *testing.T) {
	params := deterministicParams(10, 2)
	cells, err := entity.ParseLayout("1....1...")
	require.NoError(t, err)
	_, err = traffic.NewWithRoad(params, randengine.New(0), cells)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cells, err = entity.ParseLayout("3....1....")
	require.NoError(t, err)
	_, err = traffic.NewWithRoad(params, randengine.New(0), cells)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewLargeRoad(t *testing.T) {
	params := defaultParams()
	params.RoadLength = 400000
	params.InitialCount = 100000

	start := time.Now()
	m, err := traffic.New(params, randengine.New(3))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	cells := m.Road()
	assert.Equal(t, params.InitialCount, occupied(cells))
	assert.Equal(t, params.InitialCount, m.Statistics().Occupied)

	// 车辆链表按位置升序，与元胞数组一致
	m.Step()
	s := m.Statistics()
	assert.Equal(t, s.Occupied, occupied(m.Road()))
	assert.Equal(t, params.InitialCount, s.Occupied+s.Exited-(s.Entered-params.InitialCount))
}

// countingRand 从不慢化、从不进车，只记录PTrue的调用次数
type countingRand struct {
	*randengine.Engine
	calls []float64
}

func (r *countingRand) PTrue(p float64) bool {
	r.calls = append(r.calls, p)
	return false
}

func TestRandomDrawOrder(t *testing.T) {
	params := deterministicParams(10, 2)
	params.SlowProbability = 0.25
	params.EntryProbability = 0.5
	cells, err := entity.ParseLayout("0....1....")
	require.NoError(t, err)
	rng := &countingRand{Engine: randengine.New(0)}
	m, err := traffic.NewWithRoad(params, rng, cells)
	require.NoError(t, err)

	// 两辆车加速后速度都大于0，各抽取一次慢化；入口每步抽取一次
	m.Step()
	assert.Equal(t, []float64{0.25, 0.25, 0.5}, rng.calls)
	assert.Equal(t, ".1.....2..", entity.Render(m.Road(), 0))
}

func TestZeroStatistics(t *testing.T) {
	params := deterministicParams(10, 2)
	m := mustLayout(t, params, "..........")
	s := m.Statistics()
	assert.Equal(t, 0.0, s.AverageSpeed)
	assert.Equal(t, 0.0, s.FlowRate)
	assert.Equal(t, 0, s.ElapsedSteps)

	// 有步数但没有任何车辆观测
	m.Step()
	s = m.Statistics()
	assert.Equal(t, 0.0, s.AverageSpeed)
	assert.Equal(t, 0.0, s.FlowRate)
	assert.Equal(t, 1, s.ElapsedSteps)
}

func TestTwoVehicles(t *testing.T) {
	m := mustLayout(t, deterministicParams(10, 2), "1....1....")

	// 两车加速到2，间距均为4（后车绕回看到前车），各前进2格
	m.Step()
	assert.Equal(t, "..2....2..", entity.Render(m.Road(), 0))
	s := m.Statistics()
	assert.Equal(t, 2.0, s.AverageSpeed)
	assert.Equal(t, 0, s.Exited)

	m.Step()
	assert.Equal(t, "....2....2", entity.Render(m.Road(), 0))

	// 位置9的车越过终点驶出，不绕回
	m.Step()
	assert.Equal(t, "......2...", entity.Render(m.Road(), 0))
	s = m.Statistics()
	assert.Equal(t, 2, s.Entered)
	assert.Equal(t, 1, s.Exited)
	assert.Equal(t, 3, s.ElapsedSteps)
	assert.InDelta(t, 1.0/3, s.FlowRate, 1e-9)

	// 只剩一辆车时间距为L-1
	m.Step()
	assert.Equal(t, "........2.", entity.Render(m.Road(), 0))
	m.Step()
	assert.Equal(t, "..........", entity.Render(m.Road(), 0))
	s = m.Statistics()
	assert.Equal(t, 2, s.Exited)
	assert.Equal(t, 0, s.Occupied)
	assert.Equal(t, 2.0, s.AverageSpeed)
}

func TestEntry(t *testing.T) {
	params := deterministicParams(10, 1)
	params.EntryProbability = 1
	m := mustLayout(t, params, "..........")

	m.Step()
	assert.Equal(t, "1.........", entity.Render(m.Road(), 0))
	// 元胞0为空但元胞1有车，前方没有空间，不能进车
	m.Step()
	assert.Equal(t, ".1........", entity.Render(m.Road(), 0))
	m.Step()
	assert.Equal(t, "1.1.......", entity.Render(m.Road(), 0))
	assert.Equal(t, 2, m.Statistics().Entered)
}

func TestCongestion(t *testing.T) {
	params := deterministicParams(10, 2)
	params.CongestionThreshold = 4
	m := mustLayout(t, params, "00000.....")

	// 前四辆车间距为0保持静止，第五辆车以速度1前进
	m.Step()
	assert.Equal(t, "0000.1....", entity.Render(m.Road(), 0))
	s := m.Statistics()
	assert.Equal(t, 1, s.CongestionCount)
	assert.InDelta(t, 0.2, s.AverageSpeed, 1e-9)
}

func TestInvariants(t *testing.T) {
	params := defaultParams()
	params.RoadLength = 200
	params.InitialCount = 80
	params.SlowProbability = 0.5
	params.EntryProbability = 0.8
	m, err := traffic.New(params, randengine.New(3))
	require.NoError(t, err)

	prev := m.Statistics()
	for i := 0; i < 500; i++ {
		m.Step()
		cells := m.Road()
		s := m.Statistics()

		// 车辆数守恒：只因进出而变化
		assert.Equal(t, prev.Occupied-(s.Exited-prev.Exited)+(s.Entered-prev.Entered), s.Occupied)
		assert.Equal(t, s.Occupied, occupied(cells))
		assert.Equal(t, s.Entered-s.Exited, s.Occupied)
		// 速度范围
		for _, c := range cells {
			if v, ok := c.Speed(); ok {
				assert.GreaterOrEqual(t, v, 0)
				assert.LessOrEqual(t, v, params.MaxSpeed)
			}
		}
		// 计数器单调不减
		assert.GreaterOrEqual(t, s.CongestionCount, prev.CongestionCount)
		assert.Equal(t, i+1, s.ElapsedSteps)
		prev = s
	}
	assert.Greater(t, prev.Exited, 0)
}

func TestDeterministicReplay(t *testing.T) {
	params := defaultParams()
	a, err := traffic.New(params, randengine.New(42))
	require.NoError(t, err)
	b, err := traffic.New(params, randengine.New(42))
	require.NoError(t, err)

	require.Equal(t, a.Road(), b.Road())
	for i := 0; i < 100; i++ {
		a.Step()
		b.Step()
		require.Equal(t, a.Road(), b.Road(), "step %d", i+1)
		require.Equal(t, a.Statistics(), b.Statistics(), "step %d", i+1)
	}
}
