package moments

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kozaktomas/photo-moments/internal/geo"
)

// meanShift moves every point to the Gaussian-weighted mean of the original
// points (bandwidth in meters) until no point moves more than threshold
// meters in one iteration, or maxIterations is reached.
func meanShift(points []geo.Coordinate, bandwidth, threshold float64, maxIterations int) []geo.Coordinate {
	lats := make([]float64, len(points))
	lngs := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Latitude
		lngs[i] = p.Longitude
	}

	shifted := make([]geo.Coordinate, len(points))
	copy(shifted, points)
	weights := make([]float64, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		maxMove := 0.0
		for i, s := range shifted {
			for j, p := range points {
				d := geo.Distance(s, p) / bandwidth
				weights[j] = math.Exp(-0.5 * d * d)
			}
			next := geo.Coordinate{
				Latitude:  stat.Mean(lats, weights),
				Longitude: stat.Mean(lngs, weights),
			}
			// All weights underflowed: the point is isolated, leave it.
			if math.IsNaN(next.Latitude) || math.IsNaN(next.Longitude) {
				continue
			}
			if move := geo.Distance(s, next); move > maxMove {
				maxMove = move
			}
			shifted[i] = next
		}
		if maxMove <= threshold {
			break
		}
	}
	return shifted
}

// groupByProximity greedily groups points: each ungrouped point seeds a
// group, then every later ungrouped point within radius meters of any
// member already in the group joins it. Returns index groups in seed order.
func groupByProximity(points []geo.Coordinate, radius float64) [][]int {
	grouped := make([]bool, len(points))
	var groups [][]int

	for i := range points {
		if grouped[i] {
			continue
		}
		group := []int{i}
		grouped[i] = true

		for j := range points {
			if grouped[j] {
				continue
			}
			for _, member := range group {
				if geo.Distance(points[j], points[member]) <= radius {
					group = append(group, j)
					grouped[j] = true
					break
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}
