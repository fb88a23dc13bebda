// Package files implements the disk cleanup utility for the pipeline
// data directories.
//
// Three targets cover the disk the pipeline consumes: extracted
// transport files (cheap to regenerate from the archives), the raw
// archives themselves, and the processed parquet corpus. Targets
// compose, raw subsumes extracted, and a dry run reports what a real
// run would remove without touching anything.
package files
