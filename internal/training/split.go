package training

import "math/rand"

// Split shuffles indices 0..n-1 with seed and returns the train and test
// partitions. The test partition gets round(n*testRatio) items, at least
// one when n > 1, and the train partition is never empty.
func Split(n int, testRatio float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	k := int(float64(n)*testRatio + 0.5)
	if k == 0 && n > 1 && testRatio > 0 {
		k = 1
	}
	if k >= n {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	return perm[k:], perm[:k]
}
