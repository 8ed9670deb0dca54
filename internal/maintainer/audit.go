package maintainer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/pkg/safe"
)

func canonicalRelKey(r graph.Relationship) string {
	if r.Source == "" || r.Target == "" || r.Type == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", r.Source, r.Target, r.Type)
}

type auditCandidate struct {
	idx int
	rel graph.Relationship
	key string
}

// auditRelationships samples candidate relationships not recently cleared
// by the false-relations cache and runs them through IsRelationDeletable in
// concurrent batches, retrying API failures for up to AuditMaxRounds with a
// fixed cooldown between rounds (spec §4.7 step 6).
func (m *Maintainer) auditRelationships(ctx context.Context, nodes []graph.Node, rels []graph.Relationship, falseRelCache map[string]cacheEntry) ([]graph.Relationship, map[string]cacheEntry) {
	idToNode := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		idToNode[n.ID] = n
	}

	now := time.Now().UTC()
	var candidates []auditCandidate
	for i, r := range rels {
		key := canonicalRelKey(r)
		if key == "" {
			continue
		}
		if entry, cached := falseRelCache[key]; cached {
			ts, err := time.Parse(time.RFC3339, entry.Timestamp)
			if err == nil {
				ageDays := int(now.Sub(ts).Hours() / 24)
				switch {
				case ageDays <= m.cfg.RelCleanSkipDays:
					continue
				case ageDays > m.cfg.RelCleanProbStartDays && ageDays <= m.cfg.RelCleanProbEndDays:
					total := m.cfg.RelCleanProbEndDays - m.cfg.RelCleanProbStartDays
					ratio := 1.0
					if total > 0 {
						ratio = float64(ageDays-m.cfg.RelCleanProbStartDays) / float64(total)
					}
					prob := m.cfg.RelCleanProbStartValue + (m.cfg.RelCleanProbEndValue-m.cfg.RelCleanProbStartValue)*ratio
					if rand.Float64() >= prob {
						continue
					}
				}
			}
		}
		candidates = append(candidates, auditCandidate{idx: i, rel: r, key: key})
	}

	if len(candidates) == 0 {
		m.logger.Info("no relationships require auditing")
		return rels, falseRelCache
	}
	if len(candidates) > m.cfg.RelCleanNum {
		perm := rand.Perm(len(candidates))
		sampled := make([]auditCandidate, 0, m.cfg.RelCleanNum)
		for _, i := range perm[:m.cfg.RelCleanNum] {
			sampled = append(sampled, candidates[i])
		}
		candidates = sampled
	}
	m.logger.Info("auditing relationships", "candidates", len(candidates))

	toDelete := make(map[int]bool)
	var mu sync.Mutex
	pending := candidates
	round := 0

	operation := func() error {
		round++
		batch := pending
		pending = nil
		if len(batch) == 0 {
			return nil
		}
		m.logger.Info("audit round", "round", round, "pending", len(batch))

		workPool, err := pool.New(m.cfg.PoolBackend, m.cfg.AuditBatchSize)
		if err != nil {
			return err
		}
		var wg sync.WaitGroup
		for _, c := range batch {
			c := c
			wg.Add(1)
			job := safe.WithRecover(func() {
				defer wg.Done()
				decision := m.llmSvc.IsRelationDeletable(ctx, c.rel, idToNode)
				mu.Lock()
				defer mu.Unlock()
				switch decision {
				case llm.RelationDelete:
					toDelete[c.idx] = true
				case llm.RelationKeep:
					falseRelCache[c.key] = cacheEntry{Timestamp: now.Format(time.RFC3339)}
				default:
					pending = append(pending, c)
				}
			}, func(err error) {
				m.logger.Error("panic during relationship audit", "relationship", c.key, "error", err)
				mu.Lock()
				pending = append(pending, c)
				mu.Unlock()
			})
			if err := workPool.Submit(job); err != nil {
				wg.Done()
				m.logger.Error("failed to submit audit task", "relationship", c.key, "error", err)
				mu.Lock()
				pending = append(pending, c)
				mu.Unlock()
			}
		}
		wg.Wait()

		if len(pending) > 0 {
			return fmt.Errorf("maintainer: %d relationships still unresolved after round %d", len(pending), round)
		}
		return nil
	}

	// WithMaxRetries counts retries after the first attempt, so passing
	// AuditMaxRounds directly would run AuditMaxRounds+1 total rounds.
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.AuditCooldown), uint64(max(m.cfg.AuditMaxRounds-1, 0)))
	if err := backoff.Retry(operation, bo); err != nil {
		m.logger.Error("relationship audit left unresolved items after max rounds", "remaining", len(pending))
	}

	if len(toDelete) == 0 {
		return rels, falseRelCache
	}
	kept := make([]graph.Relationship, 0, len(rels)-len(toDelete))
	for i, r := range rels {
		if !toDelete[i] {
			kept = append(kept, r)
		}
	}
	m.logger.Info("relationship audit complete", "deleted", len(toDelete))
	return kept, falseRelCache
}
