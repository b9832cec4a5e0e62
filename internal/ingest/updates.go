package ingest

import "fmt"

// ProgressUpdate represents a progress event during a sync.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Sync phase
	Step    int    // Pages fetched or batches committed so far
	Total   int    // Known total, 0 when the feed length is unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Sync phase enumeration
type Phase int

const (
	FetchPage Phase = iota
	CommitBatch
	SyncDone
)

func (p Phase) String() string {
	switch p {
	case FetchPage:
		return "fetch_page"
	case CommitBatch:
		return "commit_batch"
	case SyncDone:
		return "sync_done"
	default:
		return ""
	}
}

func fetchPageUpdate(page, changes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPage,
		Step:    page,
		Message: fmt.Sprintf("Fetched page %d (%d changes)", page, changes),
	}
}

func commitBatchUpdate(batch int, upserted, deleted int, batchID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CommitBatch,
		Step:    batch,
		Message: fmt.Sprintf("Committed batch %d: %d upserted, %d deleted", batch, upserted, deleted),
		Data:    batchID,
	}
}

func syncDoneUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncDone,
		Step:    result.Batches,
		Total:   result.Batches,
		Message: fmt.Sprintf("Sync complete: %d pages in %d batches", result.Pages, result.Batches),
		Data:    result,
	}
}

// sendProgress sends update unless the channel is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
