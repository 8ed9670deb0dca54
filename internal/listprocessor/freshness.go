package listprocessor

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var invalidFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// sanitizeFilename mirrors process_list.py's sanitize_filename.
func sanitizeFilename(name string) string {
	return invalidFilenameChars.ReplaceAllString(name, "_")
}

const fragmentTimestampLayout = "2006-01-02-15-04-05"

var fragmentTimestampPattern = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})\.json$`)

// lastLocalProcessTime scans <dataDir>/<category>/<sanitized-item>/ for the
// newest timestamped fragment, mirroring get_last_local_process_time.
func lastLocalProcessTime(dataDir, category, item string, loc *time.Location) (time.Time, bool) {
	dir := filepath.Join(dataDir, category, sanitizeFilename(item))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, false
	}

	var latest time.Time
	found := false
	for _, e := range entries {
		m := fragmentTimestampPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(fragmentTimestampLayout, m[1], loc)
		if err != nil {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}

// shouldProcess implements the freshness policy (spec §4.5): never
// processed → yes; within the cooldown window → no; wiki unchanged since
// the local copy → no; within the probabilistic ramp → a coin flip weighted
// by age; past the ramp → yes.
func (p *Processor) shouldProcess(ctx context.Context, item, category, lang string) bool {
	last, ok := lastLocalProcessTime(p.cfg.DataDir, category, item, p.cfg.location())
	if !ok {
		return true
	}

	now := time.Now().In(p.cfg.location())
	ageDays := int(now.Sub(last).Hours() / 24)

	if ageDays <= p.cfg.ProbStartDay {
		return false
	}

	latestWikiTime, err := p.wiki.GetLatestRevisionTime(ctx, item, lang)
	if err != nil {
		p.logger.Warn("revision time lookup failed, proceeding as if changed", "item", item, "error", err)
	} else if !latestWikiTime.IsZero() && !latestWikiTime.After(last) {
		return false
	}

	if ageDays > p.cfg.ProbStartDay && ageDays <= p.cfg.ProbEndDay {
		total := p.cfg.ProbEndDay - p.cfg.ProbStartDay
		ratio := 1.0
		if total > 0 {
			ratio = float64(ageDays-p.cfg.ProbStartDay) / float64(total)
		}
		probability := p.cfg.ProbStartValue + (p.cfg.ProbEndValue-p.cfg.ProbStartValue)*ratio
		return rand.Float64() < probability
	}

	return ageDays > p.cfg.ProbEndDay
}
