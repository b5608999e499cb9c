package traffic

import (
	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity/road"
)

// Statistics 模型统计结果
type Statistics struct {
	AverageSpeed    float64 // 所有步所有车辆速度观测的平均值（元胞/步）
	FlowRate        float64 // 驶出车辆数/已模拟步数（辆/步）
	CongestionCount int     // 累计拥堵事件数
	Entered         int     // 累计进入车辆数
	Exited          int     // 累计驶出车辆数
	ElapsedSteps    int     // 已模拟步数
	Occupied        int     // 当前道路上的车辆数
	Density         float64 // 当前密度（车辆数/元胞数）
}

// Statistics 计算统计结果（只读）
// 说明：没有观测或没有模拟步时，对应的平均值为0
func (m *Model) Statistics() Statistics {
	s := Statistics{
		CongestionCount: m.congestions,
		Entered:         m.entered,
		Exited:          m.exited,
		ElapsedSteps:    m.elapsed,
		Occupied:        m.road.Occupied(),
		Density:         float64(m.road.Occupied()) / float64(m.road.Len()),
	}
	if m.speedObservations > 0 {
		s.AverageSpeed = float64(m.speedSum) / float64(m.speedObservations)
	}
	if m.elapsed > 0 {
		s.FlowRate = float64(m.exited) / float64(m.elapsed)
	}
	return s
}

// countCongestions 检测道路上的拥堵事件
// 功能：从左到右扫描，连续threshold个速度不超过1的车辆记为一次拥堵
// 参数：r-道路，threshold-连续慢车阈值K
// 返回：本步检测到的拥堵事件数
// 算法说明：
// 1. 有车且速度<=1的元胞使连续计数加一，其他元胞（空元胞或快车）将其清零
// 2. 连续计数达到阈值时记一次拥堵，跳过当前连续有车区段的剩余部分，清零后从区段之后继续
// 说明：不循环绕回，扫描到最后一个元胞为止；同一拥堵无论多长只记一次
func countCongestions(r *road.Road, threshold int) (count int) {
	run := 0
	for i := 0; i < r.Len(); i++ {
		v, ok := r.Cell(i).Speed()
		if !ok || v > 1 {
			run = 0
			continue
		}
		run++
		if run < threshold {
			continue
		}
		count++
		log.Debugf("congestion detected ending at cell %d", i)
		for i+1 < r.Len() && !r.Cell(i+1).IsEmpty() {
			i++
		}
		run = 0
	}
	return
}
