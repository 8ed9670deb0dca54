package listprocessor

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

// PageviewsEntry is one line of the pageviews cache (spec §6, grounded on
// original_source/scripts/check_pageviews.py).
type PageviewsEntry struct {
	AvgDailyViews  float64   `json:"avg_daily_views"`
	TotalViews     float64   `json:"total_views"`
	CheckTimestamp time.Time `json:"check_timestamp"`
}

// PageviewsCache maps a title to its last-known pageviews stats.
type PageviewsCache map[string]PageviewsEntry

// WeightParams is the (min_w, max_w, exponent) triple controlling the
// rank-to-weight function used by A-ExpJ sampling (spec §4.5).
type WeightParams struct {
	MinW     float64
	MaxW     float64
	Exponent float64
}

// rankWeight computes w = min_w + (max_w-min_w) * (1 - rank/n)^exponent for
// a zero-based rank out of n candidates, favoring lower (more-viewed) ranks.
func rankWeight(rank, n int, p WeightParams) float64 {
	if n <= 1 {
		return p.MaxW
	}
	return p.MinW + (p.MaxW-p.MinW)*math.Pow(1-float64(rank)/float64(n), p.Exponent)
}

// aExpJKey draws the reservoir key u^(1/w) for a candidate of weight w.
func aExpJKey(w float64) float64 {
	u := rand.Float64()
	if u <= 0 {
		u = 1e-12
	}
	if w <= 0 {
		w = 1e-6
	}
	return math.Pow(u, 1/w)
}

// sampleWeighted picks up to n titles from candidates. With a pageviews
// cache it ranks candidates by avg_daily_views descending, assigns each a
// rank-derived A-ExpJ weight, and keeps the n highest keys — equivalent in
// distribution to a streaming A-ExpJ reservoir since the whole candidate
// pool already fits in memory, just without the streaming jump shortcut.
// Without a pageviews cache it falls back to uniform sampling.
func sampleWeighted(candidates []string, pageviews PageviewsCache, n int, params WeightParams) []string {
	if n <= 0 || len(candidates) <= n {
		return append([]string(nil), candidates...)
	}
	if len(pageviews) == 0 {
		return sampleUniform(candidates, n)
	}

	ranked := append([]string(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return pageviews[ranked[i]].AvgDailyViews > pageviews[ranked[j]].AvgDailyViews
	})

	type keyed struct {
		title string
		key   float64
	}
	keys := make([]keyed, len(ranked))
	for i, title := range ranked {
		w := rankWeight(i, len(ranked), params)
		keys[i] = keyed{title: title, key: aExpJKey(w)}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].key > keys[j].key })

	out := make([]string, 0, n)
	for i := 0; i < n && i < len(keys); i++ {
		out = append(out, keys[i].title)
	}
	return out
}

func sampleUniform(candidates []string, n int) []string {
	perm := rand.Perm(len(candidates))
	out := make([]string, 0, n)
	for i := 0; i < n && i < len(perm); i++ {
		out = append(out, candidates[perm[i]])
	}
	return out
}
