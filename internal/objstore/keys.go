package objstore

import "fmt"

// SourceKey is where uploaded source text lives.
func SourceKey(userID, fileID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", userID, fileID, filename)
}

// ChunkKey is where the chunker writes one chunk record (JSON body).
func ChunkKey(userID, fileID, chunkID string) string {
	return fmt.Sprintf("chunks/%s/%s/%s.json", userID, fileID, chunkID)
}

// TranslatedChunkKey is where a worker writes translated plain text.
// Deterministic per (jobID, index) so retries overwrite idempotently.
func TranslatedChunkKey(jobID string, index int) string {
	return fmt.Sprintf("translated/%s/chunk-%d.txt", jobID, index)
}

// TranslatedPrefix is the key prefix owned by translation workers.
// Workers must never read under it; see the parallel-safety contract.
func TranslatedPrefix(jobID string) string {
	return fmt.Sprintf("translated/%s/", jobID)
}
