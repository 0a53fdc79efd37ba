package asr

// Chunk is one window of a long capture buffer. PCM aliases the parent
// buffer; chunks are consumed within a single transcription pass.
type Chunk struct {
	Index   int
	Start   int
	PCM     []byte
	Overlap int // bytes shared with the previous chunk
}

// splitChunks partitions pcm into consecutive windows of at most
// chunkBytes, each overlapping its predecessor by overlapBytes so a word
// spoken across a boundary appears intact in at least one window. Every
// window except the last is exactly chunkBytes long; for a buffer of
// length L > chunkBytes the window count is
// ceil((L - overlap) / (chunkBytes - overlap)).
func splitChunks(pcm []byte, chunkBytes, overlapBytes int) []Chunk {
	if len(pcm) == 0 {
		return nil
	}
	if len(pcm) <= chunkBytes {
		return []Chunk{{Index: 0, Start: 0, PCM: pcm}}
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		overlap := 0
		if len(chunks) > 0 {
			overlap = overlapBytes
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Start:   start,
			PCM:     pcm[start:end],
			Overlap: overlap,
		})
		if end >= len(pcm) {
			break
		}
		start = end - overlapBytes
	}
	return chunks
}
