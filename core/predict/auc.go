package predict

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC computes the area under the ROC curve for a set of scores against
// binary outcomes. Degenerate inputs (empty, or a single outcome class)
// score 0.5 so they never win a model comparison.
func AUC(scores []float64, outcomes []bool) float64 {
	if len(scores) == 0 || len(scores) != len(outcomes) {
		return 0.5
	}
	pos, neg := 0, 0
	for _, o := range outcomes {
		if o {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), outcomes...)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
