package predict

import (
	"math"
	"sort"
)

const (
	treeMinLeaf       = 5
	treeLambda        = 1.0 // L2 regularization on leaf values
	treeMaxThresholds = 32
)

// treeNode is one node of a regression tree fitted to boosting gradients.
// Leaf values are Newton steps: -G / (H + lambda).
type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildTree grows a depth-limited regression tree over the given sample
// indices, choosing splits by gradient/hessian gain.
func buildTree(xs [][]float64, grad, hess []float64, idx []int, depth int) *treeNode {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += grad[i]
		sumH += hess[i]
	}
	node := &treeNode{leaf: true, value: -sumG / (sumH + treeLambda)}
	if depth <= 0 || len(idx) < 2*treeMinLeaf {
		return node
	}

	parentScore := sumG * sumG / (sumH + treeLambda)
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	for f := 0; f < len(xs[idx[0]]); f++ {
		for _, thr := range candidateThresholds(xs, idx, f) {
			var gl, hl float64
			nl := 0
			for _, i := range idx {
				if xs[i][f] < thr {
					gl += grad[i]
					hl += hess[i]
					nl++
				}
			}
			if nl < treeMinLeaf || len(idx)-nl < treeMinLeaf {
				continue
			}
			gr := sumG - gl
			hr := sumH - hl
			gain := gl*gl/(hl+treeLambda) + gr*gr/(hr+treeLambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = thr
			}
		}
	}
	if bestFeature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if xs[i][bestFeature] < bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	node.leaf = false
	node.feature = bestFeature
	node.threshold = bestThreshold
	node.left = buildTree(xs, grad, hess, left, depth-1)
	node.right = buildTree(xs, grad, hess, right, depth-1)
	return node
}

// candidateThresholds returns up to treeMaxThresholds split points for one
// feature, taken as midpoints between adjacent distinct values.
func candidateThresholds(xs [][]float64, idx []int, f int) []float64 {
	vals := make([]float64, 0, len(idx))
	for _, i := range idx {
		vals = append(vals, xs[i][f])
	}
	sort.Float64s(vals)
	uniq := vals[:0]
	for i, v := range vals {
		if i == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) < 2 {
		return nil
	}

	step := 1
	if len(uniq)-1 > treeMaxThresholds {
		step = int(math.Ceil(float64(len(uniq)-1) / treeMaxThresholds))
	}
	out := make([]float64, 0, treeMaxThresholds)
	for i := step; i < len(uniq); i += step {
		out = append(out, (uniq[i-1]+uniq[i])/2)
	}
	return out
}
