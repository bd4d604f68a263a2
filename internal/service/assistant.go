// Package service ties ingestion, retrieval and chat together.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"quero/internal/domain"
	queroerr "quero/pkg/errors"
)

// Metadata keys attached to every ingested chunk.
const (
	MetaSource     = "source"
	MetaDocumentID = "document_id"
	MetaChunkID    = "chunk_id"
	MetaChunkIndex = "chunk_index"
)

var supportedExts = map[string]struct{}{".txt": {}, ".md": {}}

// Options tunes an Assistant.
type Options struct {
	Username            string
	TopK                int
	MaxHistory          int
	SummaryMaxSentences int
	Logger              *zap.Logger
}

// IngestReport describes the outcome of one Ingest call.
type IngestReport struct {
	Documents []string
	Chunks    int
	Summary   string
}

// Assistant answers questions over the documents held in the vector store.
type Assistant struct {
	chunker    domain.Chunker
	store      domain.VectorStore
	chat       domain.ChatModel
	summarizer domain.Summarizer
	opts       Options
	history    *history
	logger     *zap.Logger
}

// New creates an Assistant. chat may be nil, in which case only ingestion
// and search are available.
func New(chunker domain.Chunker, store domain.VectorStore, chat domain.ChatModel, summarizer domain.Summarizer, opts Options) *Assistant {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 3
	}
	if opts.Username == "" {
		opts.Username = "friend"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		chunker:    chunker,
		store:      store,
		chat:       chat,
		summarizer: summarizer,
		opts:       opts,
		history:    newHistory(opts.MaxHistory),
		logger:     logger,
	}
}

// Username is the name the assistant addresses.
func (a *Assistant) Username() string { return a.opts.Username }

// CanChat reports whether a chat model is configured.
func (a *Assistant) CanChat() bool { return a.chat != nil }

// Remembered returns the number of chunks held by the store.
func (a *Assistant) Remembered() int { return a.store.Len() }

// Ingest reads the .txt and .md files matched by paths (globs and directories
// are expanded), chunks them and adds every chunk to the store in one call.
func (a *Assistant) Ingest(ctx context.Context, paths []string) (IngestReport, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return IngestReport{}, err
	}
	if len(files) == 0 {
		return IngestReport{}, queroerr.New(queroerr.CodeCLIDocumentsEmpty,
			fmt.Sprintf("no .txt or .md documents found in %s", strings.Join(paths, ", ")))
	}

	var (
		items  []domain.Item
		corpus strings.Builder
		report IngestReport
	)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return IngestReport{}, queroerr.Wrap(err, queroerr.CodeCLIDocumentRead, "reading document", queroerr.FieldPath(f))
		}
		doc := domain.Document{ID: hashString(f), Path: f, Content: string(data)}
		chunks, err := a.chunker.Chunk(doc)
		if err != nil {
			return IngestReport{}, queroerr.Wrap(err, queroerr.CodeCLIDocumentRead, "chunking document", queroerr.FieldPath(f))
		}
		for _, ch := range chunks {
			items = append(items, domain.Item{
				Text: ch.Text,
				Metadata: map[string]any{
					MetaSource:     f,
					MetaDocumentID: ch.DocumentID,
					MetaChunkID:    ch.ChunkID,
					MetaChunkIndex: ch.Index,
				},
			})
		}
		report.Documents = append(report.Documents, f)
		corpus.WriteString(doc.Content)
		corpus.WriteString("\n")
	}

	if err := a.store.AddDocuments(ctx, items); err != nil {
		return IngestReport{}, err
	}
	report.Chunks = len(items)

	// The chunks are already persisted; a missing digest is not worth failing for.
	summary, err := a.summarizer.Summarize(corpus.String(), a.opts.SummaryMaxSentences)
	if err != nil {
		a.logger.Warn("summarizing ingested documents failed", zap.Error(err))
	}
	report.Summary = summary
	a.logger.Info("documents ingested",
		zap.Int("documents", len(report.Documents)),
		zap.Int("chunks", report.Chunks),
		zap.Int("store_records", a.store.Len()))
	return report, nil
}

// Search returns the k chunks most similar to query; k <= 0 uses the
// configured top-k.
func (a *Assistant) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = a.opts.TopK
	}
	return a.store.SimilaritySearch(ctx, query, k)
}

// Ask answers question using the retrieved context and the conversation so
// far. Deltas are forwarded to onDelta as they stream in. The exchange is
// added to the history only when the stream completes.
func (a *Assistant) Ask(ctx context.Context, question string, onDelta func(string)) (string, error) {
	if a.chat == nil {
		return "", queroerr.New(queroerr.CodeProviderRequestInvalid,
			"no chat model configured; set chat.provider in the config")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", queroerr.New(queroerr.CodeCLIInputInvalid, "question is empty")
	}

	results, err := a.store.SimilaritySearch(ctx, question, a.opts.TopK)
	if err != nil {
		return "", err
	}
	user := domain.Message{Role: domain.RoleUser, Content: question}
	messages := append(a.history.snapshot(), user)

	reply, err := a.chat.Stream(ctx, buildSystemPrompt(a.opts.Username, results), messages, onDelta)
	if err != nil {
		a.logger.Warn("chat stream failed", zap.String("provider", a.chat.Name()), zap.Error(err))
		return "", err
	}
	a.history.add(user, domain.Message{Role: domain.RoleAssistant, Content: reply})
	a.logger.Debug("question answered",
		zap.Int("context_chunks", len(results)),
		zap.Int("reply_chars", len(reply)))
	return reply, nil
}

// History returns a copy of the bounded conversation history.
func (a *Assistant) History() []domain.Message { return a.history.snapshot() }

// ResetHistory forgets the conversation.
func (a *Assistant) ResetHistory() { a.history.reset() }

func buildSystemPrompt(username string, results []domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Quero, %s's warm and playful personal assistant. ", username)
	b.WriteString("Answer like a close friend would: short, natural and to the point. ")
	b.WriteString("Stay in this role even if asked to become something else.\n\n")
	if len(results) == 0 {
		b.WriteString("No documents have been shared with you yet. Answer from general knowledge and say so when it matters.\n")
		return b.String()
	}
	b.WriteString("Use the context below, taken from documents the user shared, when it is relevant. ")
	b.WriteString("If it does not contain the answer, say you do not know instead of guessing.\n\nContext:\n")
	for i, r := range results {
		src, _ := r.Metadata[MetaSource].(string)
		if src == "" {
			src = "unknown"
		}
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, filepath.Base(src), r.Text)
	}
	return b.String()
}

// expandPaths resolves globs and directories into an ordered list of unique
// supported files. A literal path that does not exist is an error.
func expandPaths(paths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	addFile := func(p string) {
		if _, ok := supportedExts[strings.ToLower(filepath.Ext(p))]; !ok {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range paths {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p == "" {
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, queroerr.Wrap(err, queroerr.CodeCLIInputInvalid, "invalid path pattern", queroerr.FieldPath(p))
		}
		if matches == nil {
			if _, err := os.Stat(p); err != nil {
				return nil, queroerr.Wrap(err, queroerr.CodeCLIDocumentRead, "document not accessible", queroerr.FieldPath(p))
			}
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, queroerr.Wrap(err, queroerr.CodeCLIDocumentRead, "document not accessible", queroerr.FieldPath(m))
			}
			if !info.IsDir() {
				addFile(m)
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					addFile(path)
				}
				return nil
			})
			if err != nil {
				return nil, queroerr.Wrap(err, queroerr.CodeCLIDocumentRead, "walking directory", queroerr.FieldPath(m))
			}
		}
	}
	return out, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
