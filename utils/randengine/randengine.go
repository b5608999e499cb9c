// 随机数引擎，包装了golang.org/x/exp/rand，提供了元胞自动机所需的随机数生成方法
package randengine

import (
	"flag"
	"log"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成功能（非线程安全）
// 说明：基于golang.org/x/exp/rand库，相同种子产生相同的随机数序列
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 功能：根据给定概率返回布尔值
// 参数：p-返回true的概率（0.0到1.0之间）
// 返回：true或false
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// IntRange 在闭区间内均匀生成整数
// 功能：返回[lo, hi]范围内的随机整数
// 参数：lo-下限，hi-上限（包含）
// 说明：hi小于lo时panic
func (e *Engine) IntRange(lo, hi int) int {
	if hi < lo {
		log.Panicf("randengine: IntRange: empty range [%d, %d]", lo, hi)
	}
	return lo + e.Intn(hi-lo+1)
}

// Sample 无放回抽样
// 功能：从[0, n)中抽取k个互不相同的整数
// 参数：n-总体大小，k-抽样数量
// 返回：长度为k的抽样结果，按抽取顺序排列
// 算法说明：
// 1. 截断：k超过n时取n，k不为正时返回空
// 2. 部分Fisher-Yates洗牌：只交换前k个位置
// 说明：仅使用位置映射表，避免为大的n分配完整数组
func (e *Engine) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int{}
	}
	swapped := make(map[int]int, k)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	res := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + e.Intn(n-i)
		res[i] = at(j)
		swapped[j] = at(i)
	}
	return res
}
