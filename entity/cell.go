package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell 道路元胞
// 功能：表示一个元胞的状态，要么为空，要么有一辆车及其速度
// 说明：零值为空元胞；车辆没有独立身份，只由非空元胞隐式表示
type Cell struct {
	speed    int
	occupied bool
}

// Empty 空元胞
func Empty() Cell {
	return Cell{}
}

// Vehicle 速度为v的车辆所在的元胞
func Vehicle(v int) Cell {
	return Cell{speed: v, occupied: true}
}

// IsEmpty 元胞是否为空
func (c Cell) IsEmpty() bool {
	return !c.occupied
}

// Speed 获取元胞中车辆的速度
// 返回：速度与是否有车，空元胞返回(0, false)
func (c Cell) Speed() (int, bool) {
	return c.speed, c.occupied
}

// String 空元胞为'.'，否则为速度
func (c Cell) String() string {
	if !c.occupied {
		return "."
	}
	return strconv.Itoa(c.speed)
}

// Render 道路的文本表示
// 功能：将元胞序列拼接为文本，用于快照日志
// 参数：cells-元胞序列，width-最多显示的元胞数（不为正则显示全部）
func Render(cells []Cell, width int) string {
	if width > 0 && width < len(cells) {
		cells = cells[:width]
	}
	var sb strings.Builder
	sb.Grow(len(cells))
	for _, c := range cells {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// ParseLayout 解析道路布局文本
// 功能：Render的逆过程，'.'为空元胞，'0'-'9'为车辆速度
// 返回：元胞序列，遇到其他字符时返回错误
// 说明：布局文本每个字符对应一个元胞，因此只支持个位数速度
func ParseLayout(layout string) ([]Cell, error) {
	cells := make([]Cell, 0, len(layout))
	for i, ch := range layout {
		switch {
		case ch == '.':
			cells = append(cells, Empty())
		case ch >= '0' && ch <= '9':
			cells = append(cells, Vehicle(int(ch-'0')))
		default:
			return nil, fmt.Errorf("bad layout character %q at %d", ch, i)
		}
	}
	return cells, nil
}
