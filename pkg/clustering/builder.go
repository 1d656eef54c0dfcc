// Package clustering groups the hits of a frame into 8-connected clusters
// and computes their geometric properties.
package clustering

import (
	"betaatten/internal/models"
)

// Build groups the frame's unclustered hits into clusters.
//
// Hits are scanned in input order; each hit that is not yet clustered
// seeds a new cluster, which is grown breadth-first through the neighbour
// index until no adjacent unclustered hit remains. Cluster membership is
// the 8-connected component of the seed and does not depend on input
// order; only the order in which clusters are returned does. Members are
// listed in discovery order.
//
// The clusters are not analysed; see Analyse and BuildAll.
func Build(frame *models.Frame) []*models.Cluster {
	clusters := make([]*models.Cluster, 0)
	if frame == nil || frame.Len() == 0 {
		return clusters
	}

	index := newNeighbourIndex(frame.Hits)
	queue := make([]int, 0, 16)

	for seed := range frame.Hits {
		if frame.Hits[seed].IsClustered() {
			continue
		}

		cluster := models.NewCluster(len(clusters))
		cluster.Add(frame, seed)

		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, nb := range index.neighbours(frame.Hits[current]) {
				if frame.Hits[nb].IsClustered() {
					continue
				}
				cluster.Add(frame, nb)
				queue = append(queue, nb)
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}

// BuildAll builds the frame's clusters and analyses each of them
func BuildAll(frame *models.Frame) []*models.Cluster {
	clusters := Build(frame)
	for _, c := range clusters {
		Analyse(frame, c)
	}
	return clusters
}
