package geo

import (
	"math"
	"testing"
)

func TestDistanceKM_Identity(t *testing.T) {
	if d := DistanceKM(25.76, -80.19, 25.76, -80.19); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestDistanceKM_Symmetry(t *testing.T) {
	a := DistanceKM(25.7617, -80.1918, 26.1224, -80.1373)
	b := DistanceKM(26.1224, -80.1373, 25.7617, -80.1918)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestDistanceKM_KnownValue(t *testing.T) {
	// Miami to Fort Lauderdale, roughly 40 km.
	d := DistanceKM(25.7617, -80.1918, 26.1224, -80.1373)
	if d < 38 || d > 43 {
		t.Fatalf("unexpected Miami-Fort Lauderdale distance %f", d)
	}
}

func TestDistanceKM_TriangleInequality(t *testing.T) {
	pts := [][2]float64{
		{25.7617, -80.1918},
		{28.5383, -81.3792},
		{30.3322, -81.6557},
	}
	ab := DistanceKM(pts[0][0], pts[0][1], pts[1][0], pts[1][1])
	bc := DistanceKM(pts[1][0], pts[1][1], pts[2][0], pts[2][1])
	ac := DistanceKM(pts[0][0], pts[0][1], pts[2][0], pts[2][1])
	if ac > ab+bc+1e-9 {
		t.Fatalf("triangle inequality violated: %f > %f + %f", ac, ab, bc)
	}
}

func TestDistanceKM_NaN(t *testing.T) {
	if d := DistanceKM(math.NaN(), 0, 0, 0); !math.IsNaN(d) {
		t.Fatalf("expected NaN, got %f", d)
	}
}

func TestWorkloadRatio(t *testing.T) {
	if r := WorkloadRatio(3, 8); r != 0.375 {
		t.Fatalf("expected 0.375, got %f", r)
	}
	if r := WorkloadRatio(9, 8); r != 1.125 {
		t.Fatalf("expected 1.125, got %f", r)
	}
}
