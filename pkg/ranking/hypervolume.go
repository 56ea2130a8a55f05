package ranking

import (
	"math"
	"sort"
)

// Hypervolume computes the dominated hypervolume of a minimization Pareto
// front: the volume of the region bounded above by ref and below by the
// lower envelope of pts. Every coordinate of every point in pts must be at
// most the corresponding coordinate of ref, and ref must have at least one
// dimension.
func Hypervolume(pts [][]float64, ref []float64) float64 {
	if len(ref) == 0 {
		panic("hypervolume: reference point must have at least one dimension")
	}
	if len(pts) == 0 {
		return 0
	}
	return hypervolumeRecursive(pts, ref)
}

func hypervolumeRecursive(pts [][]float64, ref []float64) float64 {
	switch len(pts) {
	case 1:
		return hypervolumeTwoPoints(pts[0], ref)
	case 2:
		return hypervolumeTwoPoints(pts[0], ref) +
			hypervolumeTwoPoints(pts[1], ref) -
			hypervolumeTwoPoints(maxCoordinates(pts[0], pts[1]), ref)
	default:
		sorted := make([][]float64, len(pts))
		copy(sorted, pts)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

		var total float64
		for i, pt := range sorted {
			total += exclusiveHypervolume(pt, sorted[i+1:], ref)
		}
		return total
	}
}

func hypervolumeTwoPoints(a, b []float64) float64 {
	product := 1.0
	for i := range a {
		product *= math.Abs(a[i] - b[i])
	}
	return product
}

func maxCoordinates(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Max(a[i], b[i])
	}
	return out
}

// exclusiveHypervolume returns pt's contribution to the front's hypervolume
// that isn't already covered by any point in rest. rest must be sorted by
// its first coordinate.
func exclusiveHypervolume(pt []float64, rest [][]float64, ref []float64) float64 {
	var limited [][]float64
	if len(rest) > 0 {
		intersections := make([][]float64, len(rest))
		for i, other := range rest {
			intersections[i] = maxCoordinates(other, pt)
		}

		limited = append(limited, intersections[0])
		left := 0
		for right := 1; right < len(rest); right++ {
			differs := false
			for d := range intersections[left] {
				if intersections[left][d] > intersections[right][d] {
					differs = true
					break
				}
			}
			if differs {
				left = right
				limited = append(limited, intersections[left])
			}
		}
	}

	volume := hypervolumeTwoPoints(pt, ref)
	switch len(limited) {
	case 0:
	case 1:
		volume -= hypervolumeTwoPoints(limited[0], ref)
	default:
		volume -= hypervolumeRecursive(limited, ref)
	}
	return volume
}

// hypervolumeReferencePoint returns a point that every point in pts weakly
// dominates: the componentwise max, nudged up by one so points that land
// exactly on it still contribute volume.
func hypervolumeReferencePoint(pts [][]float64) []float64 {
	dim := len(pts[0])
	ref := make([]float64, dim)
	for d := 0; d < dim; d++ {
		max := math.Inf(-1)
		for _, p := range pts {
			if p[d] > max {
				max = p[d]
			}
		}
		ref[d] = max + 1
	}
	return ref
}

// HypervolumeScore scalarizes a multi-objective Pareto front into a single
// lower-is-better number, so multi-objective studies need not always be
// excluded from the aggregate scores the rest of this package computes
// (§C.1): the dominated hypervolume against a reference point derived from
// the worst observed coordinate per objective, negated so that a larger
// (better) front yields a smaller (better) score.
func HypervolumeScore(points [][]float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	ref := hypervolumeReferencePoint(points)
	return -Hypervolume(points, ref), true
}
