package randengine_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/nasch-sim-oss/utils/randengine"
)

func TestSample(t *testing.T) {
	e := randengine.New(1)
	for _, k := range []int{0, 1, 10, 100} {
		s := e.Sample(100, k)
		assert.Len(t, s, k)
		assert.Len(t, lo.Uniq(s), k)
		for _, v := range s {
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, 100)
		}
	}
	// k超过n时截断
	s := e.Sample(5, 10)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, s)
	assert.Empty(t, e.Sample(5, -1))
}

func TestIntRange(t *testing.T) {
	e := randengine.New(2)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v := e.IntRange(2, 4)
		assert.GreaterOrEqual(t, v, 2)
		assert.LessOrEqual(t, v, 4)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 3, e.IntRange(3, 3))
	assert.Panics(t, func() { e.IntRange(4, 3) })
}

func TestDeterministic(t *testing.T) {
	a, b := randengine.New(7), randengine.New(7)
	assert.Equal(t, a.Sample(1000, 50), b.Sample(1000, 50))
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.False(t, a.PTrue(0))
	assert.True(t, a.PTrue(1))
}
