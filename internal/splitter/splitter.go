package splitter

import "fmt"

const (
	DefaultChunkSize = 300
	DefaultOverlap   = 30
)

// Split cuts text into windows of chunkSize characters, each window
// starting chunkSize-overlap after the previous one so that consecutive
// chunks share overlap characters. Sizes count runes, not bytes, so a
// boundary never lands inside a multibyte character. The last chunk may
// be shorter. Chunk boundaries can fall mid-word; retrieval tolerates
// that.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 || overlap < 0 || chunkSize <= overlap {
		return nil, fmt.Errorf("chunk size %d must be greater than overlap %d", chunkSize, overlap)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
