package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hisab/internal/amqp"
	"hisab/internal/core"
	"hisab/internal/sheets"
	"hisab/internal/storage"
)

// Source is the read side of the store plus its mirror bookkeeping.
type Source interface {
	Load(ctx context.Context) (core.Dataset, error)
	Revision(ctx context.Context) (int64, error)
	storage.SyncTracker
}

// MirrorRecorder observes mirror runs.
type MirrorRecorder interface {
	RecordMirror(revision int64, err error)
}

// SyncWorker copies the dataset to an external mirror whenever the stored
// revision is ahead of the last mirrored one.
type SyncWorker struct {
	source   Source
	mirror   sheets.DatasetMirror
	recorder MirrorRecorder

	// serializes mirror runs triggered by AMQP and by the poller
	mu sync.Mutex
}

func NewSyncWorker(source Source, mirror sheets.DatasetMirror, recorder MirrorRecorder) *SyncWorker {
	return &SyncWorker{source: source, mirror: mirror, recorder: recorder}
}

// HandleDatasetChanged processes a change notification from AMQP. Stale
// notifications, at or below the mirrored revision, are acknowledged without
// touching the mirror.
func (w *SyncWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	slog.InfoContext(ctx, "Processing dataset change",
		"component", "worker",
		"revision", msg.Revision,
		"action", msg.Action)

	synced, err := w.source.SyncedRevision(ctx)
	if err != nil {
		return fmt.Errorf("get synced revision: %w", err)
	}
	if msg.Revision <= synced {
		slog.DebugContext(ctx, "Dataset change already mirrored",
			"component", "worker", "revision", msg.Revision, "synced", synced)
		return nil
	}
	_, err = w.syncIfBehind(ctx)
	return err
}

// ProcessPending mirrors the dataset if it moved past the last mirrored
// revision. It is the fallback for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, err := w.syncIfBehind(ctx)
	return err
}

// StartupSyncCheck catches up on changes made while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	mirrored, err := w.syncIfBehind(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if !mirrored {
		slog.InfoContext(ctx, "Mirror up to date on startup", "component", "worker")
	}
	return nil
}

func (w *SyncWorker) syncIfBehind(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	synced, err := w.source.SyncedRevision(ctx)
	if err != nil {
		return false, fmt.Errorf("get synced revision: %w", err)
	}
	// Read before Load so the dataset is never older than the revision we mark.
	current, err := w.source.Revision(ctx)
	if err != nil {
		return false, fmt.Errorf("get revision: %w", err)
	}
	if current <= synced {
		return false, nil
	}

	ds, err := w.source.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load dataset: %w", err)
	}

	err = w.mirror.Mirror(ctx, ds, current)
	if w.recorder != nil {
		w.recorder.RecordMirror(current, err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to mirror dataset",
			"component", "worker", "revision", current, "error", err)
		return false, fmt.Errorf("mirror revision %d: %w", current, err)
	}

	if err := w.source.MarkSynced(ctx, current); err != nil {
		// The mirror is already written; the next run rewrites it.
		slog.ErrorContext(ctx, "Failed to mark revision as synced",
			"component", "worker", "revision", current, "error", err)
		return true, nil
	}

	slog.InfoContext(ctx, "Dataset mirrored",
		"component", "worker",
		"revision", current,
		"previous", synced)
	return true, nil
}
