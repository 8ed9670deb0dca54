package liststore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tangerg/wikigraph/internal/chinese"
)

func newTestConv(t *testing.T) *chinese.Converter {
	t.Helper()
	conv, err := chinese.New()
	if err != nil {
		t.Skipf("gocc dictionaries unavailable: %v", err)
	}
	return conv
}

func writeListFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "LIST.md")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestStore_ParseCategoriesAndComments(t *testing.T) {
	conv := newTestConv(t)
	path := writeListFile(t, "## person\n// a comment\nDeng Xiaoping\n(en) Mao Zedong\n\n## organization\nCCP\n")

	s, err := Open(conv, path)
	require.NoError(t, err)

	cats := s.Categories()
	require.Contains(t, cats, "person")
	assert.Len(t, cats["person"], 3)
	assert.True(t, cats["person"][0].IsComment)
	assert.Equal(t, "Deng Xiaoping", cats["person"][1].DisplayName)
	assert.Equal(t, "zh", cats["person"][1].Lang)
	assert.Equal(t, "Mao Zedong", cats["person"][2].DisplayName)
	assert.Equal(t, "en", cats["person"][2].Lang)
	require.Contains(t, cats, "organization")
	assert.Len(t, cats["organization"], 1)
}

func TestStore_AddTitle_IdempotentAndCreatesNewSection(t *testing.T) {
	conv := newTestConv(t)
	path := writeListFile(t, "## person\nDeng Xiaoping\n")

	s, err := Open(conv, path)
	require.NoError(t, err)

	require.NoError(t, s.AddTitle("Candidate One"))
	require.NoError(t, s.AddTitle("Candidate One")) // idempotent

	cats := s.Categories()
	assert.Len(t, cats["new"], 1)

	reopened, err := Open(conv, path)
	require.NoError(t, err)
	assert.Len(t, reopened.Categories()["new"], 1)
}

func TestStore_UpdateTitle_ReplacesLine(t *testing.T) {
	conv := newTestConv(t)
	path := writeListFile(t, "## person\nOld Title\n")

	s, err := Open(conv, path)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTitle("Old Title", "New Title"))

	cats := s.Categories()
	assert.Equal(t, "New Title", cats["person"][0].DisplayName)
}

func TestStore_UpdateTitle_RemovesWhenTargetAlreadyExists(t *testing.T) {
	conv := newTestConv(t)
	path := writeListFile(t, "## person\nOld Title\nNew Title\n")

	s, err := Open(conv, path)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTitle("Old Title", "New Title"))

	cats := s.Categories()
	assert.Len(t, cats["person"], 1)
	assert.Equal(t, "New Title", cats["person"][0].DisplayName)
}
