package road

import (
	"fmt"

	"github.com/tsinghua-fib-lab/nasch-sim-oss/entity"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/container"
)

// VehicleNode 车辆链表节点，S为所在元胞，Value为速度
type VehicleNode = container.ListNode[int]

// Road 单车道元胞道路
// 功能：维护长度为L的元胞数组，以及按位置升序排列的车辆链表
// 说明：元胞数组是每步提交的完整状态；车辆链表用于O(1)查找前车，两者始终一致
type Road struct {
	length   int
	cells    []entity.Cell
	vehicles *container.List[int]
}

// New 创建长度为length的空道路
func New(length int) *Road {
	if length <= 0 {
		log.Panicf("bad road length %d", length)
	}
	return &Road{
		length:   length,
		cells:    make([]entity.Cell, length),
		vehicles: &container.List[int]{},
	}
}

// FromCells 根据元胞序列创建道路
// 功能：复制给定的元胞序列并建立车辆链表
// 参数：cells-元胞序列，长度即为道路长度
// 返回：道路实例，序列为空时返回错误
func FromCells(cells []entity.Cell) (*Road, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("empty road layout")
	}
	r := New(len(cells))
	for i, c := range cells {
		if v, ok := c.Speed(); ok {
			r.vehicles.PushBack(&VehicleNode{S: i, Value: v})
		}
	}
	r.commit()
	return r, nil
}

// Len 道路长度
func (r *Road) Len() int {
	return r.length
}

// Cell 获取位置i的元胞
func (r *Road) Cell(i int) entity.Cell {
	return r.cells[i]
}

// Cells 获取所有元胞的副本
func (r *Road) Cells() []entity.Cell {
	cells := make([]entity.Cell, r.length)
	copy(cells, r.cells)
	return cells
}

// Occupied 道路上的车辆数
func (r *Road) Occupied() int {
	return r.vehicles.Len()
}

// First 位置最小的车辆，道路为空时返回nil
func (r *Road) First() *VehicleNode {
	return r.vehicles.First()
}

// Place 在空元胞pos处放置速度为v的车辆
// 说明：元胞已被占用或越界时panic
func (r *Road) Place(pos, v int) {
	if pos < 0 || pos >= r.length {
		log.Panicf("place vehicle out of road: %d not in [0, %d)", pos, r.length)
	}
	if !r.cells[pos].IsEmpty() {
		log.Panicf("place vehicle on occupied cell %d", pos)
	}
	node := &VehicleNode{S: pos, Value: v}
	if next := r.vehicles.FirstAfter(pos); next != nil {
		next.InsertBefore(node)
	} else {
		r.vehicles.PushBack(node)
	}
	r.cells[pos] = entity.Vehicle(v)
}

// DistanceAhead 位置pos前方连续空元胞的数量
// 功能：从pos+1开始向前（模L循环）数空元胞，直到遇到下一辆车
// 返回：pos+1有车时为0；除pos外道路全空时为L-1
// 说明：前车查找是循环的，但车辆移动是开放边界，两者不可混淆
func (r *Road) DistanceAhead(pos int) int {
	if next := r.vehicles.FirstAfter(pos); next != nil {
		return next.S - pos - 1
	}
	return r.wrapDistance(pos)
}

// Gap 车辆node与前车之间的空元胞数量，与DistanceAhead(node.S)等价
func (r *Road) Gap(node *VehicleNode) int {
	if next := node.Next(); next != nil {
		return next.S - node.S - 1
	}
	return r.wrapDistance(node.S)
}

// wrapDistance pos之后没有车辆时，绕回道路起点寻找前车
func (r *Road) wrapDistance(pos int) int {
	first := r.vehicles.First()
	if first == nil || first.S == pos {
		return r.length - 1
	}
	return first.S + r.length - pos - 1
}

// Advance 按当前速度移动所有车辆
// 功能：车辆前进v个元胞，越过道路终点的车辆驶出并移除，随后提交新的元胞数组
// 返回：本步驶出的车辆数
// 说明：速度不超过前车间距，移动后车辆顺序不变且不会重叠；出现重叠说明规则被破坏，直接panic
func (r *Road) Advance() (exited int) {
	last := -1
	for node := r.vehicles.First(); node != nil; {
		next := node.Next()
		target := node.S + node.Value
		if target >= r.length {
			r.vehicles.Remove(node)
			exited++
		} else {
			if target <= last {
				log.Panicf("vehicle collision at cell %d (from %d with speed %d)", target, node.S, node.Value)
			}
			node.S = target
			last = target
		}
		node = next
	}
	r.commit()
	return
}

// commit 根据车辆链表重建元胞数组
func (r *Road) commit() {
	cells := make([]entity.Cell, r.length)
	for node := r.vehicles.First(); node != nil; node = node.Next() {
		cells[node.S] = entity.Vehicle(node.Value)
	}
	r.cells = cells
}
