package deck

import "github.com/rotisserie/eris"

// ChunkText splits text into windows of size runes where each window repeats the last
// overlap runes of its predecessor. chunks[0] followed by chunks[i][overlap:] for i > 0
// reconstructs text exactly.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, eris.New("chunk size must be greater than zero")
	}
	if overlap < 0 || overlap >= size {
		return nil, eris.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= size {
		return []string{text}, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks, nil
}
