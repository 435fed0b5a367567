package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

type fakeEmbedder struct {
	fail map[string]bool
}

func (e fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	for marker := range e.fail {
		if strings.Contains(text, marker) {
			return nil, errors.New("embedding service down")
		}
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type memStore struct {
	mu    sync.Mutex
	docs  map[string]*models.FlinkDocument
	cases []*models.KnowledgeCase
}

func (m *memStore) UpsertDoc(_ context.Context, d *models.FlinkDocument, _ []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]*models.FlinkDocument{}
	}
	m.docs[d.DocID] = d
	return nil
}

func (m *memStore) DeleteDoc(_ context.Context, docID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[docID]
	delete(m.docs, docID)
	return ok, nil
}

func (m *memStore) SaveCase(_ context.Context, c *models.KnowledgeCase, _ []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases = append(m.cases, c)
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadLocalFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "nested", "b.TXT"), "b")
	writeFile(t, filepath.Join(root, "image.png"), "x")
	writeFile(t, filepath.Join(root, ".git", "c.md"), "c")

	files, err := LoadLocalFiles(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.md"),
		filepath.Join(root, "nested", "b.TXT"),
	}, files)
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := ExtractText("diagram.png")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestDocIDIsStable(t *testing.T) {
	a := DocID("docs/checkpoint.md", 0)
	assert.Equal(t, a, DocID("docs/checkpoint.md", 0))
	assert.NotEqual(t, a, DocID("docs/checkpoint.md", 1))
	assert.Regexp(t, `^doc_[0-9a-f]{16}$`, a)
}

func TestDocTitle(t *testing.T) {
	assert.Equal(t, "checkpoint tuning guide", DocTitle("/x/checkpoint-tuning_guide.md"))
	assert.Equal(t, "memory", DocTitle("memory.txt"))
}

func TestIngestDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ops", "checkpointing.md"), "Checkpointing overview.\n\nTune execution.checkpointing.timeout for slow sinks.")
	writeFile(t, filepath.Join(root, "broken.txt"), "EMBED_FAIL here")
	writeFile(t, filepath.Join(root, "empty.md"), "\n\n  \n")

	store := &memStore{}
	in := NewIngester(store, fakeEmbedder{fail: map[string]bool{"EMBED_FAIL": true}},
		Options{Category: "checkpoint", BaseURL: "https://docs.example.com/flink/"}, zaptest.NewLogger(t))

	res, err := in.IngestDir(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 2, res.Chunks)
	assert.Len(t, res.Skipped, 2)

	doc, ok := store.docs[DocID("ops/checkpointing.md", 1)]
	require.True(t, ok)
	assert.Equal(t, "checkpointing", doc.Title)
	assert.Equal(t, "checkpoint", doc.Category)
	assert.Equal(t, "https://docs.example.com/flink/ops/checkpointing.md", doc.DocURL)
	assert.Contains(t, doc.Content, "execution.checkpointing.timeout")

	// Re-ingesting replaces rather than duplicates.
	_, err = in.IngestDir(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, store.docs, 2)
}

func TestIngestFilePrunesStaleChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "state.md")
	writeFile(t, path, "one\n\ntwo\n\nthree")

	store := &memStore{}
	in := NewIngester(store, fakeEmbedder{}, Options{}, zaptest.NewLogger(t))
	n, err := in.IngestFile(context.Background(), root, path)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	writeFile(t, path, "one")
	n, err = in.IngestFile(context.Background(), root, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.docs, 1)
	assert.Contains(t, store.docs, DocID("state.md", 0))
}

func TestDocIDIgnoresHowRootIsSpelled(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "docs")
	path := filepath.Join(nested, "ops", "memory.md")
	writeFile(t, path, "Tune taskmanager.memory.process.size.")

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(root))

	absStore, relStore := &memStore{}, &memStore{}
	_, err = NewIngester(absStore, fakeEmbedder{}, Options{}, zaptest.NewLogger(t)).IngestDir(context.Background(), nested)
	require.NoError(t, err)
	_, err = NewIngester(relStore, fakeEmbedder{}, Options{}, zaptest.NewLogger(t)).IngestDir(context.Background(), "docs")
	require.NoError(t, err)

	require.Len(t, absStore.docs, 1)
	assert.Contains(t, absStore.docs, DocID("ops/memory.md", 0))
	assert.Contains(t, relStore.docs, DocID("ops/memory.md", 0))
}

func TestIngestDirStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "content")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := NewIngester(&memStore{}, fakeEmbedder{}, Options{}, zaptest.NewLogger(t))
	_, err := in.IngestDir(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

const seedYAML = `
cases:
  - case_id: case_checkpoint01
    error_type: checkpoint_failure
    error_pattern: "Checkpoint <NUM> expired before completing"
    root_cause: Checkpoint timeout shorter than the sink flush time.
    solution: Raise execution.checkpointing.timeout and enable unaligned checkpoints.
    verified: true
  - error_type: oom
    error_pattern: "java.lang.OutOfMemoryError: Java heap space"
    root_cause: TaskManager heap too small for keyed state.
    solution: Increase taskmanager.memory.task.heap.size or move state to RocksDB.
`

func TestLoadSeedCases(t *testing.T) {
	cases, err := LoadSeedCases(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "case_checkpoint01", cases[0].CaseID)
	assert.True(t, cases[0].Verified)
	assert.Equal(t, models.SourceManual, cases[0].SourceType)
	assert.Regexp(t, `^case_[0-9a-f]{12}$`, cases[1].CaseID)
	assert.True(t, cases[1].Verified)
}

func TestLoadSeedCasesRejectsIncomplete(t *testing.T) {
	_, err := LoadSeedCases(strings.NewReader("cases:\n  - case_id: c1\n    root_cause: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root_cause and solution are required")

	_, err = LoadSeedCases(strings.NewReader("cases:\n  - bogus_field: 1\n"))
	assert.Error(t, err)
}

func TestSeedCases(t *testing.T) {
	cases, err := LoadSeedCases(strings.NewReader(seedYAML))
	require.NoError(t, err)

	store := &memStore{}
	n, err := SeedCases(context.Background(), store, fakeEmbedder{}, cases, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.cases, 2)
	assert.Equal(t, "checkpoint_failure", store.cases[0].ErrorType)

	n, err = SeedCases(context.Background(), &memStore{}, fakeEmbedder{fail: map[string]bool{"OutOfMemoryError": true}}, cases, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestCaseText(t *testing.T) {
	c := &models.KnowledgeCase{ErrorType: "oom", ErrorPattern: "heap", RootCause: "small heap", Solution: "grow heap"}
	assert.Equal(t, "Error Type: oom\nError Pattern: heap\nRoot Cause: small heap\nSolution: grow heap", CaseText(c))
}
