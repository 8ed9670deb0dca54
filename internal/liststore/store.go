// Package liststore manages the watch-list file: a line-oriented document of
// `## category` sections, `//`-comment lines, and optional `(xx)`
// language-prefixed entries (spec §4.4). All mutations serialize through one
// process-wide mutex, mirroring add_title_to_list's read-modify-write-whole-
// file approach.
package liststore

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/pkg/kv"
)

// Entry is one non-header line of the list: either a title entry or a
// preserved "//" comment line.
type Entry struct {
	OriginalLine string // the raw line content, sans trailing newline
	DisplayName  string // the title with any "(xx) " language prefix stripped; empty for comments
	Lang         string // defaults to "zh" when no prefix is present; meaningless for comments
	IsComment    bool
}

// Store is the ListStore component. Sections are kept in an OrderedKV so
// the on-disk category order survives a load/mutate/save round trip.
type Store struct {
	path string
	conv *chinese.Converter

	mu       sync.Mutex
	sections *kv.OrderedKV[string, []Entry]
}

// Open loads path, or starts from an empty store if it does not yet exist —
// the first AddTitle call will create it.
func Open(conv *chinese.Converter, path string) (*Store, error) {
	s := &Store{path: path, conv: conv, sections: kv.NewOrderedKV[string, []Entry]()}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("liststore: read %s: %w", s.path, err)
	}
	s.sections = kv.NewOrderedKV[string, []Entry]()

	current := ""
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "##") {
			current = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "##")))
			s.sections.PutIfAbsent(current, nil)
			continue
		}
		if current == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			entries := s.sections.Value(current)
			entries = append(entries, Entry{OriginalLine: line, IsComment: true})
			s.sections.Put(current, entries)
			continue
		}
		display, lang := parseEntryLine(trimmed)
		entries := s.sections.Value(current)
		entries = append(entries, Entry{OriginalLine: line, DisplayName: display, Lang: lang})
		s.sections.Put(current, entries)
	}
	return scanner.Err()
}

func parseEntryLine(line string) (display, lang string) {
	lang = "zh"
	if strings.HasPrefix(line, "(") {
		if end := strings.Index(line, ")"); end > 0 {
			lang = strings.TrimSpace(line[1:end])
			line = strings.TrimSpace(line[end+1:])
		}
	}
	return line, lang
}

// Categories returns categories -> ordered entries, as parsed (spec §4.4
// Parse).
func (s *Store) Categories() map[string][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Entry, s.sections.Size())
	s.sections.ForEach(func(cat string, entries []Entry) {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		out[cat] = cp
	})
	return out
}

func normalizeTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
}

// AddTitle appends title under "## new" if no existing entry is the same
// title under simplified-form comparison (spec §4.4 addTitle). Idempotent.
func (s *Store) AddTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.addNoFlushLocked(title, "zh") {
		return nil
	}
	return s.flushLocked()
}

// AddTitleWithLang is AddTitle for a non-"zh" entry: it prefixes the stored
// line with "(lang) " the way add_title_to_list does for non-Chinese titles
// (merger's §4.6 step 1a "adding it to the list" clause), so a later reload
// parses the language back out correctly.
func (s *Store) AddTitleWithLang(title, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lang == "" {
		lang = "zh"
	}
	if !s.addNoFlushLocked(title, lang) {
		return nil
	}
	return s.flushLocked()
}

// addNoFlushLocked appends title under "## new" if absent, reporting whether
// it actually added an entry. Callers flush once they're done mutating.
func (s *Store) addNoFlushLocked(title, lang string) bool {
	title = normalizeTitle(title)
	if title == "" || s.containsSimplifiedLocked(title) {
		return false
	}
	line := title
	if lang != "" && lang != "zh" {
		line = "(" + lang + ") " + title
	}
	s.sections.PutIfAbsent("new", nil)
	entries := append(s.sections.Value("new"), Entry{OriginalLine: line, DisplayName: title, Lang: lang})
	s.sections.Put("new", entries)
	return true
}

// AddTitles adds a batch of titles, deduping within the batch itself before
// touching the file (spec §4.4 addTitles), writing once for the whole batch.
func (s *Store) AddTitles(titles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(titles))
	dirty := false
	for _, title := range titles {
		title = normalizeTitle(title)
		if title == "" {
			continue
		}
		key := s.simplifiedKey(title)
		if seen[key] {
			continue
		}
		seen[key] = true
		if s.addNoFlushLocked(title, "zh") {
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return s.flushLocked()
}

// UpdateTitle replaces old's line with new, or removes old's line outright
// if new already exists elsewhere in the file (spec §4.4 updateTitle). This
// satisfies wikiclient.ListUpdater.
func (s *Store) UpdateTitle(old, new string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = normalizeTitle(old)
	new = normalizeTitle(new)
	if old == "" || old == new {
		return nil
	}

	newExists := s.containsSimplifiedLocked(new)
	changed := false
	for _, cat := range s.sections.Keys() {
		entries := s.sections.Value(cat)
		for i, e := range entries {
			if e.IsComment || !s.conv.SimplifiedEqual(e.DisplayName, old) {
				continue
			}
			if newExists {
				entries = append(entries[:i], entries[i+1:]...)
			} else {
				entries[i] = Entry{OriginalLine: new, DisplayName: new, Lang: e.Lang}
			}
			s.sections.Put(cat, entries)
			changed = true
			break
		}
		if changed {
			break
		}
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

func (s *Store) containsSimplifiedLocked(title string) bool {
	found := false
	s.sections.ForEach(func(_ string, entries []Entry) {
		if found {
			return
		}
		for _, e := range entries {
			if !e.IsComment && s.conv.SimplifiedEqual(e.DisplayName, title) {
				found = true
				return
			}
		}
	})
	return found
}

// RewriteEntries rewrites every non-comment entry across all sections by
// calling resolve(category, entry) for its replacement line, then re-dedups
// the whole file by simplified display name in file order — mirroring
// clean_data.py's _update_list_names rewrite step (spec §4.7 step 2).
// resolve returns drop=true to remove the line outright. Comment and header
// lines are always preserved untouched.
func (s *Store) RewriteEntries(resolve func(cat string, e Entry) (newLine string, drop bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	changed := false
	for _, cat := range s.sections.Keys() {
		entries := s.sections.Value(cat)
		out := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.IsComment {
				out = append(out, e)
				continue
			}
			newLine, drop := resolve(cat, e)
			if drop {
				changed = true
				continue
			}
			display, lang := parseEntryLine(strings.TrimSpace(newLine))
			key := s.simplifiedKey(display)
			if seen[key] {
				changed = true
				continue
			}
			seen[key] = true
			if newLine != e.OriginalLine {
				changed = true
			}
			out = append(out, Entry{OriginalLine: newLine, DisplayName: display, Lang: lang})
		}
		s.sections.Put(cat, out)
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

func (s *Store) simplifiedKey(title string) string {
	simplified, err := s.conv.ToSimplified(title)
	if err != nil {
		return title
	}
	return simplified
}

// flushLocked rewrites the whole file, preserving category order and
// headers as "## name" lines.
func (s *Store) flushLocked() error {
	var b strings.Builder
	for _, cat := range s.sections.Keys() {
		b.WriteString("## ")
		b.WriteString(cat)
		b.WriteString("\n")
		for _, e := range s.sections.Value(cat) {
			b.WriteString(e.OriginalLine)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return os.WriteFile(s.path, []byte(b.String()), 0o644)
}
