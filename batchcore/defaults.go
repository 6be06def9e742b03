package batchcore

// DefaultChunkSize is the chunk size a Chunked step builder uses when
// none is configured explicitly.
const DefaultChunkSize = 1000

// DefaultWorkers is the processor concurrency a Chunked step builder
// uses when none is configured explicitly.
const DefaultWorkers = 1
