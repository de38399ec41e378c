package predict

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/logger"
)

const (
	logisticEpochs       = 400
	logisticLearningRate = 0.3
)

// Logistic is the basic trained model: a logistic regression over distance,
// skill score and workload, with min-max scaling fitted on the training split.
type Logistic struct {
	weights []float64
	bias    float64
	min     []float64
	max     []float64
}

func (l *Logistic) Name() string { return "logistic" }

func (l *Logistic) Predict(f Features) float64 {
	x := l.scale(basicVector(f))
	return sigmoid(floats.Dot(l.weights, x) + l.bias)
}

func (l *Logistic) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		span := l.max[i] - l.min[i]
		if span <= 0 {
			continue
		}
		out[i] = (x[i] - l.min[i]) / span
	}
	return out
}

func basicVector(f Features) []float64 {
	return []float64{f.DistanceKM, f.SkillScore, f.WorkloadRatio}
}

func rowFeatures(r history.Row) Features {
	return Features{
		DistanceKM:    r.DistanceKM,
		SkillScore:    r.SkillScore,
		SkillTier:     r.SkillTier,
		WorkloadRatio: r.WorkloadRatio,
		Hour:          r.Hour,
		Weekday:       r.Weekday,
		Weekend:       r.Weekend,
		ServiceTier:   r.ServiceTier,
		Equipment:     r.Equipment,
		FirstTimeFix:  r.FirstTimeFix,
		TechnicianID:  r.TechnicianID,
	}
}

// TrainLogistic fits the basic model by batch gradient descent. Every fifth
// row is held out for evaluation so repeated runs on the same history produce
// the same model.
func TrainLogistic(rows []history.Row, log logger.Logger) (*Logistic, error) {
	var train, test []history.Row
	for i, r := range rows {
		if i%5 == 4 {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	if len(train) == 0 || singleClass(train) {
		return nil, ErrInsufficientData
	}

	l := &Logistic{
		weights: make([]float64, 3),
		min:     []float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		max:     []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	xs := make([][]float64, len(train))
	ys := make([]float64, len(train))
	for i, r := range train {
		v := basicVector(rowFeatures(r))
		for j, f := range v {
			l.min[j] = math.Min(l.min[j], f)
			l.max[j] = math.Max(l.max[j], f)
		}
		xs[i] = v
		if r.Productive {
			ys[i] = 1
		}
	}
	for i := range xs {
		xs[i] = l.scale(xs[i])
	}

	n := float64(len(train))
	grad := make([]float64, 3)
	for epoch := 0; epoch < logisticEpochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, x := range xs {
			err := sigmoid(floats.Dot(l.weights, x)+l.bias) - ys[i]
			floats.AddScaled(grad, err, x)
			gradBias += err
		}
		floats.AddScaled(l.weights, -logisticLearningRate/n, grad)
		l.bias -= logisticLearningRate / n * gradBias
	}

	if len(test) > 0 {
		scores := make([]float64, len(test))
		outcomes := make([]bool, len(test))
		correct := 0
		for i, r := range test {
			p := l.Predict(rowFeatures(r))
			scores[i] = p
			outcomes[i] = r.Productive
			if (p >= 0.5) == r.Productive {
				correct++
			}
		}
		log.Infof("logistic model trained: train=%d test=%d accuracy=%.3f auc=%.3f",
			len(train), len(test), float64(correct)/float64(len(test)), AUC(scores, outcomes))
	}
	return l, nil
}

func singleClass(rows []history.Row) bool {
	if len(rows) == 0 {
		return true
	}
	first := rows[0].Productive
	for _, r := range rows[1:] {
		if r.Productive != first {
			return false
		}
	}
	return true
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }
