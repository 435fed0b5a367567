// Package ingestion loads Flink documentation and seed cases into the knowledge base.
package ingestion

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/llm"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// DocStore persists documentation snippets.
type DocStore interface {
	UpsertDoc(ctx context.Context, d *models.FlinkDocument, embedding []float32) error
	DeleteDoc(ctx context.Context, docID string) (bool, error)
}

// Options tag every ingested snippet.
type Options struct {
	Category string
	// BaseURL, when set, is joined with the file path relative to the ingest root.
	BaseURL string
}

// Result summarises one ingestion run.
type Result struct {
	Files   int
	Chunks  int
	Skipped []string
}

type Ingester struct {
	store    DocStore
	embedder llm.Embedder
	opts     Options
	logger   *zap.Logger
}

func NewIngester(store DocStore, embedder llm.Embedder, opts Options, logger *zap.Logger) *Ingester {
	return &Ingester{store: store, embedder: embedder, opts: opts, logger: logger}
}

// IngestDir indexes every supported file under root. Files that cannot be
// read or embedded are skipped and reported; a cancelled context aborts.
func (in *Ingester) IngestDir(ctx context.Context, root string) (Result, error) {
	var res Result
	files, err := LoadLocalFiles(root)
	if err != nil {
		return res, fmt.Errorf("load files: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := in.IngestFile(ctx, root, f)
		if err != nil {
			in.logger.Warn("skipping file", zap.String("path", f), zap.Error(err))
			res.Skipped = append(res.Skipped, f)
			continue
		}
		res.Files++
		res.Chunks += n
	}
	in.logger.Info("ingestion complete",
		zap.Int("files", res.Files),
		zap.Int("chunks", res.Chunks),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// IngestFile extracts, chunks and stores one file, returning the chunk count.
// Chunks left over from a longer earlier version of the file are removed.
func (in *Ingester) IngestFile(ctx context.Context, root, path string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, err
	}
	chunks := processing.ChunkText(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s: no text", path)
	}

	rel := relPath(root, path)
	title := DocTitle(path)
	url := in.docURL(rel)
	for i, chunk := range chunks {
		emb, err := in.embedder.Embed(ctx, chunk)
		if err != nil {
			return i, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		doc := &models.FlinkDocument{
			DocID:    DocID(rel, i),
			Title:    title,
			Content:  chunk,
			DocURL:   url,
			Category: in.opts.Category,
		}
		if err := in.store.UpsertDoc(ctx, doc, emb); err != nil {
			return i, err
		}
	}

	// Chunk ids are contiguous, so the first missing one ends the stale run.
	for i := len(chunks); ; i++ {
		deleted, err := in.store.DeleteDoc(ctx, DocID(rel, i))
		if err != nil {
			return len(chunks), err
		}
		if !deleted {
			break
		}
	}
	in.logger.Debug("indexed file", zap.String("path", path), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

func (in *Ingester) docURL(rel string) string {
	if in.opts.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(in.opts.BaseURL, "/") + "/" + rel
}

// relPath is the slash-separated path of file below root, so ids do not depend
// on whether root was given as a relative or absolute path.
func relPath(root, path string) string {
	if absRoot, err := filepath.Abs(root); err == nil {
		if absPath, err := filepath.Abs(path); err == nil {
			if rel, err := filepath.Rel(absRoot, absPath); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(filepath.Base(path))
}

// DocID is stable across runs so re-ingesting a file replaces its chunks.
// path is relative to the ingest root.
func DocID(path string, chunk int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s#%d", path, chunk)))
	return "doc_" + hex.EncodeToString(sum[:])[:16]
}

// DocTitle turns "checkpoint-tuning_guide.md" into "checkpoint tuning guide".
func DocTitle(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' }), " ")
}
