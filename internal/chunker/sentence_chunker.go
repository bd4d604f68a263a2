package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"quero/internal/domain"
)

// sentenceRe matches a run of text closed by terminal punctuation. Text after
// the last match is kept as a final sentence by SplitSentences.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// Overlap must leave at least one new sentence per chunk.
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

// Chunk splits document into windows of sentencesPerChunk sentences, each
// sharing overlapSentences with the previous window.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := SplitSentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	step := c.sentencesPerChunk - c.overlapSentences
	for start, idx := 0, 0; start < len(sentences); start, idx = start+step, idx+1 {
		end := min(start+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       strings.Join(sentences[start:end], " "),
			Index:      idx,
		})
		if end == len(sentences) {
			break
		}
	}
	return chunks, nil
}

// SplitSentences breaks text into whitespace-collapsed sentences, dropping
// pieces that hold only punctuation. A trailing unterminated fragment is kept.
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.Join(strings.Fields(text[loc[0]:loc[1]]), " "); s != "" && !isPunctOnly(s) {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.Join(strings.Fields(text[last:]), " "); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isPunctOnly(s string) bool {
	return strings.Trim(s, ".!? ") == ""
}
