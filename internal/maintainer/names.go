package maintainer

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
	"github.com/Tangerg/wikigraph/pkg/safe"
)

type nameTask struct {
	qcode, lang string
}

type nameResult struct {
	qcode, lang, title string
	status             wikiclient.AuthoritativeStatus
}

// refreshMasterGraphNames updates Q-code nodes' canonical names to their
// authoritative titles and drops nodes no language could validate (spec
// §4.7 step 1, ported from _update_master_graph_names).
func (m *Maintainer) refreshMasterGraphNames(ctx context.Context, g graph.Graph) graph.Graph {
	var qcodes []string
	for _, n := range g.Nodes {
		if graph.IsQcode(n.ID) {
			qcodes = append(qcodes, n.ID)
		}
	}
	if len(qcodes) == 0 {
		m.logger.Info("no Q-code nodes in master graph, skipping name refresh")
		return g
	}
	if len(qcodes) > m.cfg.MasterGraphUpdateLimit {
		m.logger.Warn("Q-code count exceeds update limit, sampling", "total", len(qcodes), "limit", m.cfg.MasterGraphUpdateLimit)
		perm := rand.Perm(len(qcodes))
		sampled := make([]string, 0, m.cfg.MasterGraphUpdateLimit)
		for _, i := range perm[:m.cfg.MasterGraphUpdateLimit] {
			sampled = append(sampled, qcodes[i])
		}
		qcodes = sampled
	}

	nodesByID := make(map[string]graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodesByID[n.ID] = n
	}

	taskSet := make(map[nameTask]bool)
	for _, qcode := range qcodes {
		taskSet[nameTask{qcode, "zh"}] = true
		taskSet[nameTask{qcode, "en"}] = true
		if n, ok := nodesByID[qcode]; ok {
			for langKey := range n.Name {
				lang := langKey
				if lang == "zh-cn" {
					lang = "zh"
				}
				taskSet[nameTask{qcode, lang}] = true
			}
		}
	}

	results := m.runNameTasks(ctx, taskSet)

	statusesByQcode := make(map[string][]wikiclient.AuthoritativeStatus, len(qcodes))
	authTitles := make(map[nameTask]string, len(results))
	for _, r := range results {
		statusesByQcode[r.qcode] = append(statusesByQcode[r.qcode], r.status)
		if r.status == wikiclient.AuthoritativeOK && r.title != "" {
			authTitles[nameTask{r.qcode, r.lang}] = r.title
		}
	}

	badQcodes := make(map[string]bool)
	for _, qcode := range qcodes {
		hasOKorError := false
		for _, s := range statusesByQcode[qcode] {
			if s == wikiclient.AuthoritativeOK || s == wikiclient.AuthoritativeError {
				hasOKorError = true
				break
			}
		}
		if !hasOKorError {
			badQcodes[qcode] = true
		}
	}

	if len(badQcodes) > 0 {
		m.logger.Warn("dropping Q-code nodes with no validated language", "count", len(badQcodes))
		kept := make([]graph.Node, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			if !badQcodes[n.ID] {
				kept = append(kept, n)
			}
		}
		g.Nodes = kept
		validIDs := make(map[string]bool, len(kept))
		for _, n := range kept {
			validIDs[n.ID] = true
		}
		keptRels := make([]graph.Relationship, 0, len(g.Relationships))
		for _, r := range g.Relationships {
			if validIDs[r.Source] && validIDs[r.Target] {
				keptRels = append(keptRels, r)
			}
		}
		g.Relationships = keptRels
	}

	var titlesToAdd []string
	for i, n := range g.Nodes {
		for task, title := range authTitles {
			if task.qcode != n.ID {
				continue
			}
			langKey := task.lang
			if langKey == "zh" {
				langKey = "zh-cn"
			}
			if n.Name == nil {
				n.Name = make(map[string][]string)
			}
			current := n.Name[langKey]
			canonical := title
			set := map[string]bool{canonical: true}
			for _, existing := range current {
				set[existing] = true
			}
			if langKey == "zh-cn" && m.conv != nil {
				normalized := make(map[string]bool, len(set))
				for name := range set {
					simplified, err := m.conv.ToSimplified(name)
					if err != nil {
						simplified = name
					}
					normalized[simplified] = true
				}
				set = normalized
				if simplified, err := m.conv.ToSimplified(canonical); err == nil {
					canonical = simplified
				}
			}
			delete(set, canonical)
			rest := make([]string, 0, len(set))
			for name := range set {
				rest = append(rest, name)
			}
			sort.Strings(rest)
			n.Name[langKey] = append([]string{canonical}, rest...)
			g.Nodes[i] = n

			if langKey == "zh-cn" {
				titlesToAdd = append(titlesToAdd, canonical)
			} else {
				titlesToAdd = append(titlesToAdd, task.lang+"\x00"+canonical)
			}
		}
	}

	if m.list != nil && len(titlesToAdd) > 0 {
		for _, t := range lo.Uniq(titlesToAdd) {
			if idx := strings.IndexByte(t, 0); idx >= 0 {
				_ = m.list.AddTitleWithLang(t[idx+1:], t[:idx])
			} else {
				_ = m.list.AddTitle(t)
			}
		}
	}

	return g
}

func (m *Maintainer) runNameTasks(ctx context.Context, taskSet map[nameTask]bool) []nameResult {
	workPool, err := pool.New(m.cfg.PoolBackend, m.cfg.UpdateConcurrency)
	if err != nil {
		m.logger.Error("failed to build name-refresh pool", "error", err)
		return nil
	}

	var mu sync.Mutex
	var results []nameResult
	var wg sync.WaitGroup
	for task := range taskSet {
		task := task
		wg.Add(1)
		job := safe.WithRecover(func() {
			defer wg.Done()
			title, status, err := m.wiki.GetAuthoritativeTitleByQcode(ctx, task.qcode, task.lang)
			if err != nil {
				status = wikiclient.AuthoritativeError
			}
			mu.Lock()
			results = append(results, nameResult{qcode: task.qcode, lang: task.lang, title: title, status: status})
			mu.Unlock()
		}, func(err error) {
			m.logger.Error("panic during name-refresh task", "qcode", task.qcode, "lang", task.lang, "error", err)
		})
		if err := workPool.Submit(job); err != nil {
			wg.Done()
			m.logger.Error("failed to submit name-refresh task", "qcode", task.qcode, "error", err)
		}
	}
	wg.Wait()
	return results
}

type listTask struct {
	original string
	lang     string
	title    string
}

// refreshWatchList resolves every sampled watch-list entry to its
// authoritative title, follows redirect chains with cycle protection, drops
// DISAMBIG/NOT_FOUND entries, and dedupes by simplified form (spec §4.7 step
// 2, ported from _update_list_names).
func (m *Maintainer) refreshWatchList(ctx context.Context) {
	categories := m.list.Categories()
	var tasks []listTask
	seenRaw := make(map[string]bool)
	for _, entries := range categories {
		for _, e := range entries {
			if e.IsComment || seenRaw[e.OriginalLine] {
				continue
			}
			seenRaw[e.OriginalLine] = true
			lang := e.Lang
			if lang == "" {
				lang = "zh"
			}
			tasks = append(tasks, listTask{original: strings.TrimSpace(e.OriginalLine), lang: lang, title: e.DisplayName})
		}
	}
	if len(tasks) == 0 {
		m.logger.Info("watch list empty, skipping name refresh")
		return
	}
	if len(tasks) > m.cfg.ListUpdateLimit {
		m.logger.Warn("watch-list entry count exceeds update limit, sampling", "total", len(tasks), "limit", m.cfg.ListUpdateLimit)
		perm := rand.Perm(len(tasks))
		sampled := make([]listTask, 0, m.cfg.ListUpdateLimit)
		for _, i := range perm[:m.cfg.ListUpdateLimit] {
			sampled = append(sampled, tasks[i])
		}
		tasks = sampled
	}

	type resolved struct {
		final  string
		status wikiclient.AuthoritativeStatus
	}
	workPool, err := pool.New(m.cfg.PoolBackend, m.cfg.UpdateConcurrency)
	if err != nil {
		m.logger.Error("failed to build watch-list refresh pool", "error", err)
		return
	}

	var mu sync.Mutex
	results := make(map[string]resolved, len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t
		wg.Add(1)
		job := safe.WithRecover(func() {
			defer wg.Done()
			r := m.resolveListEntry(ctx, t)
			mu.Lock()
			results[t.original] = r
			mu.Unlock()
		}, func(err error) {
			m.logger.Error("panic during watch-list refresh task", "entry", t.original, "error", err)
		})
		if err := workPool.Submit(job); err != nil {
			wg.Done()
			m.logger.Error("failed to submit watch-list refresh task", "entry", t.original, "error", err)
		}
	}
	wg.Wait()

	badNames := make(map[string]bool)
	raw := make(map[string]string) // original entry text -> final entry text
	for orig, r := range results {
		if r.status == wikiclient.AuthoritativeDisambig || r.status == wikiclient.AuthoritativeNotFound {
			badNames[orig] = true
			if r.final != "" {
				badNames[r.final] = true
			}
			continue
		}
		if r.final != "" && r.final != orig {
			raw[orig] = r.final
		}
	}

	authoritative := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if badNames[t.original] {
			continue
		}
		final := t.original
		visited := map[string]bool{final: true}
		for {
			next, ok := raw[final]
			if !ok || visited[next] {
				break
			}
			final = next
			visited[next] = true
		}
		authoritative[t.original] = final
	}

	isSampled := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		isSampled[t.original] = true
	}

	err = m.list.RewriteEntries(func(_ string, e liststore.Entry) (string, bool) {
		line := strings.TrimSpace(e.OriginalLine)
		if !isSampled[line] {
			return e.OriginalLine, false
		}
		if badNames[line] {
			return "", true
		}
		final, ok := authoritative[line]
		if !ok {
			final = line
		}
		return final, false
	})
	if err != nil {
		m.logger.Error("failed to rewrite watch list", "error", err)
	}
}

// resolveListEntry resolves one watch-list entry's authoritative title,
// preferring the simplified/traditional form that round-trips to itself for
// zh entries (spec §4.7 step 2's "stable-to-itself" rule).
func (m *Maintainer) resolveListEntry(ctx context.Context, t listTask) struct {
	final  string
	status wikiclient.AuthoritativeStatus
} {
	type res = struct {
		final  string
		status wikiclient.AuthoritativeStatus
	}
	if t.lang != "zh" {
		final, status, err := m.wiki.GetAuthoritativeTitleAndStatus(ctx, t.title, t.lang)
		if err != nil {
			return res{"", wikiclient.AuthoritativeError}
		}
		if final != "" {
			return res{"(" + t.lang + ") " + final, status}
		}
		return res{"", status}
	}

	simplified := t.title
	traditional := t.title
	if m.conv != nil {
		if s, err := m.conv.ToSimplified(t.title); err == nil {
			simplified = s
		}
		if tr, err := m.conv.ToTraditional(t.title); err == nil {
			traditional = tr
		}
	}
	simpFinal, simpStatus, _ := m.wiki.GetAuthoritativeTitleAndStatus(ctx, simplified, "zh")
	tradFinal, tradStatus, _ := m.wiki.GetAuthoritativeTitleAndStatus(ctx, traditional, "zh")

	simpStable := simpStatus == wikiclient.AuthoritativeOK && simpFinal == simplified
	tradStable := tradStatus == wikiclient.AuthoritativeOK && tradFinal == traditional

	switch {
	case t.title == traditional && tradStable:
		return res{tradFinal, tradStatus}
	case t.title == simplified && simpStable:
		return res{simpFinal, simpStatus}
	case tradStable:
		return res{tradFinal, tradStatus}
	case simpStable:
		return res{simpFinal, simpStatus}
	default:
		return res{simpFinal, simpStatus}
	}
}
