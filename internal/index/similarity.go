package index

import "math"

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// maxMarginalRelevance picks k candidates balancing query similarity against
// similarity to already picked candidates. It returns positions into
// candidates in pick order. Candidates with a non-finite score are never
// picked, so fewer than k positions may come back.
func maxMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) []int {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	querySim := make([]float64, len(candidates))
	for i, c := range candidates {
		querySim[i] = cosineSimilarity(query, c)
		if math.IsNaN(querySim[i]) {
			querySim[i] = math.Inf(-1)
		}
	}

	picked := make([]int, 0, k)
	used := make([]bool, len(candidates))
	for len(picked) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range picked {
				if s := cosineSimilarity(candidates[i], candidates[j]); s > redundancy {
					redundancy = s
				}
			}
			score := lambda*querySim[i] - (1-lambda)*redundancy
			if math.IsNaN(score) || math.IsInf(score, 0) {
				continue
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, best)
	}
	return picked
}
