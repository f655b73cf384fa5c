package dag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Diamond(t *testing.T) {
	d, err := Build([]string{"A", "B", "C", "D"}, map[string][]string{
		"B": {"A"},
		"C": {"A"},
		"D": {"B", "C"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, d.Roots())
	assert.Equal(t, []string{"B", "C"}, d.Children("A"))
	assert.Equal(t, []string{"B", "C"}, d.Parents("D"))
	assert.Equal(t, []string{"A", "B", "C"}, d.Ancestors("D"))
	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, d.Levels())
	assert.Equal(t, 4, d.Size())
	assert.True(t, d.Has("C"))
	assert.False(t, d.Has("E"))
}

func TestBuild_DuplicateDependencyEdge(t *testing.T) {
	// 同一上游被多个参数引用时只建一条边
	d, err := Build([]string{"A", "B"}, map[string][]string{"B": {"A", "A"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, d.Parents("B"))
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := Build([]string{"A"}, map[string][]string{"A": {"missing"}})
	require.Error(t, err)
}

func TestBuild_CycleAnyLengthAnyPosition(t *testing.T) {
	for length := 1; length <= 6; length++ {
		for offset := 0; offset < 3; offset++ {
			t.Run(fmt.Sprintf("len=%d/offset=%d", length, offset), func(t *testing.T) {
				// 前 offset 个节点是一条无环的前缀链，环挂在链尾
				var nodes []string
				deps := map[string][]string{}
				for i := 0; i < offset; i++ {
					id := fmt.Sprintf("p%d", i)
					nodes = append(nodes, id)
					if i > 0 {
						deps[id] = []string{fmt.Sprintf("p%d", i-1)}
					}
				}
				for i := 0; i < length; i++ {
					id := fmt.Sprintf("c%d", i)
					nodes = append(nodes, id)
					prev := fmt.Sprintf("c%d", (i+length-1)%length)
					deps[id] = append(deps[id], prev)
				}
				if offset > 0 {
					deps["c0"] = append(deps["c0"], fmt.Sprintf("p%d", offset-1))
				}

				_, err := Build(nodes, deps)
				var cycleErr *CycleError
				require.True(t, errors.As(err, &cycleErr), "期望循环错误, 实际: %v", err)
				assert.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
				assert.Len(t, cycleErr.Path, length+1)
			})
		}
	}
}

func TestDetectCycle_PathIsForward(t *testing.T) {
	children := map[string][]string{
		"A": {"B"},
		"B": {"C"},
		"C": {"A"},
	}
	path := DetectCycle([]string{"A", "B", "C"}, children)
	assert.Equal(t, []string{"A", "B", "C", "A"}, path)
}

func TestDetectCycle_Acyclic(t *testing.T) {
	children := map[string][]string{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"D"},
	}
	assert.Nil(t, DetectCycle([]string{"A", "B", "C", "D"}, children))
}

func TestBuild_IndependentNodesHashDistinct(t *testing.T) {
	nodes := []string{"A", "B", "C", "D", "E"}
	d, err := Build(nodes, nil)
	require.NoError(t, err, "无依赖的多个节点也应能写入")
	assert.Equal(t, 5, d.Size())
	assert.Equal(t, nodes, d.Roots())

	ha, err := (&vertex{nodeID: "A"}).Hash()
	require.NoError(t, err)
	hb, err := (&vertex{nodeID: "B"}).Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
