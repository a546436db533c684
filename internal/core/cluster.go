package core

import (
	"sort"

	"beacon/internal/domain/model"
)

// Noise label values for the DBSCAN pass.
const (
	labelUnvisited = 0
	labelNoise     = -1
)

// ClusterPlaces runs DBSCAN over the places that have coordinates.
// epsilonM is the neighborhood radius in meters; a point is a core point
// when at least minPoints other points lie within epsilonM. Border points
// reachable from a core point join its cluster; everything else is noise
// and omitted from the output.
//
// Non-positive epsilonM or minPoints is defined degenerate behavior, not an
// error: every point is noise and the result is empty. The naive O(n²)
// neighbor search is deliberate; the expected place count is thousands.
func ClusterPlaces(places []model.Place, epsilonM float64, minPoints int) []model.Cluster {
	type point struct {
		id    int64
		coord model.Coordinate
	}
	var points []point
	for _, p := range places {
		if p.Coordinate == nil {
			continue
		}
		points = append(points, point{id: p.ID, coord: *p.Coordinate})
	}

	if epsilonM <= 0 || minPoints <= 0 || len(points) == 0 {
		return []model.Cluster{}
	}

	neighborsOf := func(i int) []int {
		var out []int
		for j := range points {
			if j == i {
				continue
			}
			if points[i].coord.DistanceM(points[j].coord) <= epsilonM {
				out = append(out, j)
			}
		}
		return out
	}

	labels := make([]int, len(points))
	clusterID := 0

	for i := range points {
		if labels[i] != labelUnvisited {
			continue
		}
		neighbors := neighborsOf(i)
		if len(neighbors) < minPoints {
			labels[i] = labelNoise
			continue
		}

		clusterID++
		labels[i] = clusterID

		// Expand the cluster from this core point. Noise points found
		// reachable here are border points and get reclaimed.
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == labelNoise {
				labels[j] = clusterID
			}
			if labels[j] != labelUnvisited {
				continue
			}
			labels[j] = clusterID
			jn := neighborsOf(j)
			if len(jn) >= minPoints {
				queue = append(queue, jn...)
			}
		}
	}

	members := make(map[int][]int, clusterID)
	coords := make(map[int][]model.Coordinate, clusterID)
	for i, label := range labels {
		if label <= 0 {
			continue
		}
		members[label] = append(members[label], i)
		coords[label] = append(coords[label], points[i].coord)
	}

	clusters := make([]model.Cluster, 0, clusterID)
	for id := 1; id <= clusterID; id++ {
		idxs := members[id]
		if len(idxs) == 0 {
			continue
		}
		ids := make([]int64, len(idxs))
		for k, i := range idxs {
			ids[k] = points[i].id
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		clusters = append(clusters, model.Cluster{
			Centroid:   model.Centroid(coords[id]),
			Members:    ids,
			PlaceCount: len(ids),
		})
	}
	return clusters
}
