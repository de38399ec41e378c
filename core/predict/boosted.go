package predict

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/logger"
)

const boostSeed = 42

// boostParams is one grid-search combination.
type boostParams struct {
	trees     int
	depth     int
	rate      float64
	subsample float64
}

var boostGrid = buildBoostGrid()

func buildBoostGrid() []boostParams {
	var grid []boostParams
	for _, trees := range []int{100, 200} {
		for _, depth := range []int{4, 6, 8} {
			for _, rate := range []float64{0.05, 0.1} {
				for _, subsample := range []float64{0.8, 1.0} {
					grid = append(grid, boostParams{trees, depth, rate, subsample})
				}
			}
		}
	}
	return grid
}

// Boosted is the enhanced model: gradient-boosted trees over the full
// feature record, minimizing log loss.
type Boosted struct {
	vec    *vectorizer
	base   float64 // initial log-odds
	rate   float64
	forest []*treeNode
	params boostParams
}

func (b *Boosted) Name() string { return "boosted" }

func (b *Boosted) Predict(f Features) float64 {
	x := b.vec.vector(f)
	score := b.base
	for _, t := range b.forest {
		score += b.rate * t.predict(x)
	}
	return sigmoid(score)
}

// TrainBoosted grid-searches the boosting parameters with 3-fold
// cross-validated AUC, then refits the winner on the full training split and
// reports held-out AUC. A fixed seed keeps subsampling reproducible.
func TrainBoosted(rows []history.Row, log logger.Logger) (*Boosted, error) {
	var train, test []history.Row
	for i, r := range rows {
		if i%5 == 4 {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	if len(train) < 3*treeMinLeaf || singleClass(train) {
		return nil, ErrInsufficientData
	}

	vec := newVectorizer(train)
	xs := make([][]float64, len(train))
	ys := make([]float64, len(train))
	for i, r := range train {
		xs[i] = vec.vector(rowFeatures(r))
		if r.Productive {
			ys[i] = 1
		}
	}

	type result struct {
		idx   int
		score float64
	}
	results := make([]result, len(boostGrid))
	var wg sync.WaitGroup
	for gi, p := range boostGrid {
		wg.Add(1)
		go func(gi int, p boostParams) {
			defer wg.Done()
			results[gi] = result{idx: gi, score: crossValidate(xs, ys, p)}
		}(gi, p)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].idx < results[j].idx
	})
	best := boostGrid[results[0].idx]

	b := fitBoosted(xs, ys, best, vec)
	if len(test) > 0 {
		scores := make([]float64, len(test))
		outcomes := make([]bool, len(test))
		for i, r := range test {
			scores[i] = b.Predict(rowFeatures(r))
			outcomes[i] = r.Productive
		}
		log.Infof("boosted model trained: trees=%d depth=%d rate=%.2f subsample=%.1f cv_auc=%.3f test_auc=%.3f",
			best.trees, best.depth, best.rate, best.subsample, results[0].score, AUC(scores, outcomes))
	}
	return b, nil
}

// crossValidate returns the mean validation AUC over 3 contiguous folds.
func crossValidate(xs [][]float64, ys []float64, p boostParams) float64 {
	const folds = 3
	n := len(xs)
	if n < folds {
		return 0.5
	}
	var total float64
	for k := 0; k < folds; k++ {
		lo := k * n / folds
		hi := (k + 1) * n / folds

		var trainIdx []int
		for i := 0; i < n; i++ {
			if i < lo || i >= hi {
				trainIdx = append(trainIdx, i)
			}
		}
		txs := make([][]float64, len(trainIdx))
		tys := make([]float64, len(trainIdx))
		for i, j := range trainIdx {
			txs[i] = xs[j]
			tys[i] = ys[j]
		}
		b := fitBoosted(txs, tys, p, nil)

		scores := make([]float64, 0, hi-lo)
		outcomes := make([]bool, 0, hi-lo)
		for i := lo; i < hi; i++ {
			score := b.base
			for _, t := range b.forest {
				score += b.rate * t.predict(xs[i])
			}
			scores = append(scores, sigmoid(score))
			outcomes = append(outcomes, ys[i] == 1)
		}
		total += AUC(scores, outcomes)
	}
	return total / folds
}

// fitBoosted fits one boosted ensemble with the given parameters.
func fitBoosted(xs [][]float64, ys []float64, p boostParams, vec *vectorizer) *Boosted {
	n := len(xs)
	pos := 0.0
	for _, y := range ys {
		pos += y
	}
	// clamp away from 0 and 1 so the initial log-odds stays finite
	prior := math.Min(math.Max(pos/float64(n), 1e-3), 1-1e-3)

	b := &Boosted{
		vec:    vec,
		base:   math.Log(prior / (1 - prior)),
		rate:   p.rate,
		params: p,
	}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewSource(boostSeed))

	for t := 0; t < p.trees; t++ {
		for i := range xs {
			prob := sigmoid(raw[i])
			grad[i] = prob - ys[i]
			hess[i] = prob * (1 - prob)
		}

		idx := make([]int, 0, n)
		if p.subsample < 1.0 {
			for i := 0; i < n; i++ {
				if rng.Float64() < p.subsample {
					idx = append(idx, i)
				}
			}
			if len(idx) < 2*treeMinLeaf {
				idx = idx[:0]
				for i := 0; i < n; i++ {
					idx = append(idx, i)
				}
			}
		} else {
			for i := 0; i < n; i++ {
				idx = append(idx, i)
			}
		}

		tree := buildTree(xs, grad, hess, idx, p.depth)
		b.forest = append(b.forest, tree)
		for i := range xs {
			raw[i] += p.rate * tree.predict(xs[i])
		}
	}
	return b
}
