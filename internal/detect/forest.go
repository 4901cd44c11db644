package detect

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

const eulerGamma = 0.5772156649015329

// Forest is a fitted isolation forest.
type Forest struct {
	trees      []tree
	sampleSize int
}

type node struct {
	feature   int // -1 marks a leaf
	threshold float64
	left      int32
	right     int32
	size      int // training points that reached the node
}

type tree struct {
	nodes []node
}

// Fit grows trees isolation trees, each on a sub-sample of at most
// maxSamples points drawn without replacement.
func Fit(points [][]float64, trees, maxSamples int, seed uint64) (*Forest, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points to fit", solar.ErrValue)
	}
	if trees <= 0 || maxSamples <= 0 {
		return nil, fmt.Errorf("%w: trees %d and max samples %d must be positive", solar.ErrValue, trees, maxSamples)
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: points have no features", solar.ErrValue)
	}
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has %d features, want %d", solar.ErrValue, i, len(p), dim)
		}
	}

	psi := min(maxSamples, len(points))
	limit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	master := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	f := &Forest{trees: make([]tree, trees), sampleSize: psi}
	for k := range f.trees {
		r := rand.New(rand.NewPCG(master.Uint64(), master.Uint64()))
		sample := r.Perm(len(points))[:psi]
		b := builder{points: points, dim: dim, rng: r, limit: limit}
		b.grow(sample, 0)
		f.trees[k] = tree{nodes: b.nodes}
	}
	return f, nil
}

type builder struct {
	points [][]float64
	dim    int
	rng    *rand.Rand
	limit  int
	nodes  []node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int32 {
	at := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{feature: -1, size: len(idx)})
	if depth >= b.limit || len(idx) <= 1 {
		return at
	}

	// Try features in random order; the first non-constant one splits.
	feature := -1
	var lo, hi float64
	for _, f := range b.rng.Perm(b.dim) {
		lo, hi = b.points[idx[0]][f], b.points[idx[0]][f]
		for _, i := range idx[1:] {
			v := b.points[i][f]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi > lo {
			feature = f
			break
		}
	}
	if feature < 0 {
		return at
	}

	thr := lo + b.rng.Float64()*(hi-lo)
	if thr >= hi {
		thr = lo
	}
	var left, right []int
	for _, i := range idx {
		if b.points[i][feature] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at].feature = feature
	b.nodes[at].threshold = thr
	b.nodes[at].left = l
	b.nodes[at].right = r
	return at
}

// pathLength is the depth at which x is isolated, plus the expected
// remaining depth of the leaf it lands in.
func (t *tree) pathLength(x []float64) float64 {
	i := int32(0)
	depth := 0
	for t.nodes[i].feature >= 0 {
		n := &t.nodes[i]
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(t.nodes[i].size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// binary search tree lookup among n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// ScoreSamples returns -2^(-E[h(x)]/c(psi)) per point. Values lie in
// [-1, 0); lower is more anomalous.
func (f *Forest) ScoreSamples(points [][]float64) []float64 {
	norm := averagePathLength(f.sampleSize)
	scores := make([]float64, len(points))
	for i, x := range points {
		var sum float64
		for k := range f.trees {
			sum += f.trees[k].pathLength(x)
		}
		mean := sum / float64(len(f.trees))
		if norm == 0 {
			scores[i] = -0.5
			continue
		}
		scores[i] = -math.Exp2(-mean / norm)
	}
	return scores
}

// SampleSize returns the per-tree sub-sample size used during Fit.
func (f *Forest) SampleSize() int {
	return f.sampleSize
}
