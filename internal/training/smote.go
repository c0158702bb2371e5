package training

import (
	"math/rand"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
)

// SMOTE oversamples the minority class until both classes have the same
// count. Each synthetic sample lies on the segment between a minority sample
// and one of its k nearest minority neighbours. The input is not modified.
func SMOTE(ds classifier.Dataset, k int, seed int64) classifier.Dataset {
	var fakeIdx, realIdx []int
	for i, y := range ds.Y {
		if y == textnorm.Fake {
			fakeIdx = append(fakeIdx, i)
		} else {
			realIdx = append(realIdx, i)
		}
	}
	minority, label := fakeIdx, textnorm.Fake
	deficit := len(realIdx) - len(fakeIdx)
	if deficit < 0 {
		minority, label = realIdx, textnorm.Real
		deficit = -deficit
	}
	out := classifier.Dataset{
		X:                 append([]feature.Vector(nil), ds.X...),
		Y:                 append([]textnorm.Label(nil), ds.Y...),
		Dim:               ds.Dim,
		VocabularyVersion: ds.VocabularyVersion,
	}
	if deficit == 0 || len(minority) < 2 {
		return out
	}
	if k <= 0 {
		k = 5
	}
	if k > len(minority)-1 {
		k = len(minority) - 1
	}

	neighbours := make([][]int, len(minority))
	rng := rand.New(rand.NewSource(seed))
	for s := 0; s < deficit; s++ {
		a := rng.Intn(len(minority))
		if neighbours[a] == nil {
			neighbours[a] = nearest(ds.X, minority, a, k)
		}
		b := neighbours[a][rng.Intn(len(neighbours[a]))]
		synth := ds.X[minority[a]].Lerp(ds.X[minority[b]], rng.Float64())
		out.X = append(out.X, synth)
		out.Y = append(out.Y, label)
	}
	return out
}

// nearest returns the positions in members of the k nearest neighbours of
// members[a], ties broken by position.
func nearest(x []feature.Vector, members []int, a, k int) []int {
	type cand struct {
		pos  int
		dist float64
	}
	cands := make([]cand, 0, len(members)-1)
	for p, idx := range members {
		if p == a {
			continue
		}
		cands = append(cands, cand{pos: p, dist: x[members[a]].SquaredDistance(x[idx])})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].pos < cands[j].pos
	})
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = cands[i].pos
	}
	return out
}
