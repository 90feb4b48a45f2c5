package nowcast

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// Forest hyperparameters. The ensemble draws every random decision
// (bootstrap rows, candidate features, per-tree seeds) from a single
// seeded source, so one seed reproduces one exact forest.
const (
	forestTrees    = 300
	forestMaxDepth = 6
	forestMinLeaf  = 5
)

// forestModel is the bootstrapped tree-ensemble variant. Score is the
// mean of per-tree leaf probabilities.
type forestModel struct {
	seed  int64
	trees []*treeNode
}

func newForestModel(seed int64) *forestModel {
	return &forestModel{seed: seed}
}

func (m *forestModel) Name() string {
	return "forest"
}

// treeNode is one node of a fitted decision tree. Leaves carry the
// fraction of positive training labels that reached them.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	prob      float64
	leaf      bool
}

// Fit grows the ensemble on bootstrap samples with sqrt(p) candidate
// features per split
func (m *forestModel) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	p := len(X[0])
	mtry := int(math.Ceil(math.Sqrt(float64(p))))

	rng := rand.New(rand.NewSource(m.seed))
	m.trees = make([]*treeNode, 0, forestTrees)

	for t := 0; t < forestTrees; t++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		treeRng := rand.New(rand.NewSource(rng.Int63()))

		sample := make([]int, n)
		for i := range sample {
			sample[i] = treeRng.Intn(n)
		}

		m.trees = append(m.trees, growTree(X, y, sample, mtry, 0, treeRng))
	}

	return nil
}

// Score averages the per-tree leaf probabilities for a feature vector
func (m *forestModel) Score(x []float64) float64 {
	if len(m.trees) == 0 {
		return 0.5
	}

	sum := 0.0
	for _, tree := range m.trees {
		node := tree
		for !node.leaf {
			if x[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		sum += node.prob
	}
	return sum / float64(len(m.trees))
}

// growTree recursively builds one tree over the sampled row indices
func growTree(X [][]float64, y []int, rows []int, mtry, depth int, rng *rand.Rand) *treeNode {
	pos := 0
	for _, i := range rows {
		pos += y[i]
	}

	node := &treeNode{leaf: true, prob: float64(pos) / float64(len(rows))}
	if depth >= forestMaxDepth || len(rows) < 2*forestMinLeaf || pos == 0 || pos == len(rows) {
		return node
	}

	feature, threshold, ok := bestSplit(X, y, rows, mtry, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range rows {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < forestMinLeaf || len(right) < forestMinLeaf {
		return node
	}

	node.leaf = false
	node.feature = feature
	node.threshold = threshold
	node.left = growTree(X, y, left, mtry, depth+1, rng)
	node.right = growTree(X, y, right, mtry, depth+1, rng)
	return node
}

// bestSplit scans mtry random candidate features for the gini-optimal
// threshold over the sampled rows
func bestSplit(X [][]float64, y []int, rows []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	p := len(X[0])
	candidates := rng.Perm(p)[:mtry]
	// Perm order is rng-dependent already; sort candidates so identical
	// rng streams always visit features in the same order
	sort.Ints(candidates)

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, len(rows))
	order := make([]int, len(rows))

	for _, f := range candidates {
		for k, i := range rows {
			values[k] = X[i][f]
			order[k] = k
		}
		sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

		// Prefix counts of positives in sorted order
		totalPos := 0
		for _, i := range rows {
			totalPos += y[i]
		}

		leftN, leftPos := 0, 0
		for k := 0; k < len(order)-1; k++ {
			i := rows[order[k]]
			leftN++
			leftPos += y[i]

			cur, next := values[order[k]], values[order[k+1]]
			if cur == next {
				continue
			}

			rightN := len(rows) - leftN
			rightPos := totalPos - leftPos
			g := weightedGini(leftPos, leftN, rightPos, rightN)
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// weightedGini is the size-weighted gini impurity of a binary split
func weightedGini(leftPos, leftN, rightPos, rightN int) float64 {
	total := float64(leftN + rightN)
	return float64(leftN)/total*gini(leftPos, leftN) + float64(rightN)/total*gini(rightPos, rightN)
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
