package domain

import "context"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult is a retrieved chunk of text with its metadata and cosine score.
type SearchResult struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Embedder converts free text into fixed-length numeric vectors.
// Embed returns exactly one vector per input text, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// ChatModel streams a completion for the conversation. onDelta receives each
// piece of text as it arrives; the full reply is returned at the end.
type ChatModel interface {
	Name() string
	Stream(ctx context.Context, systemPrompt string, messages []Message, onDelta func(string)) (string, error)
}

// Item is one text chunk to index along with its opaque metadata.
type Item struct {
	Text     string
	Metadata map[string]any
}

// VectorStore is the capability surface of the persistent vector store.
type VectorStore interface {
	AddDocuments(ctx context.Context, items []Item) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]SearchResult, error)
	Len() int
}
