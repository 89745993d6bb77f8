package service

import (
	"context"
	"encoding/json"
	"fmt"
	"video-uploader/constant"
	"video-uploader/dto"
	"video-uploader/entities"
	"video-uploader/pkg/metrics"
	"video-uploader/store"

	"github.com/rs/zerolog"
)

// ChangeFeed is a per-user subscription to remote video changes.
type ChangeFeed interface {
	Watch(ctx context.Context, userID string, handle func(ctx context.Context, batch dto.ChangeBatch)) error
}

type ReconcileResult struct {
	Applied int
	Skipped int
	Pruned  []string
	// BackstopSkipped is set when the batch carried no trustworthy snapshot.
	BackstopSkipped bool
}

// Reconciler merges remote change batches into the record store.
type Reconciler struct {
	store *store.RecordStore
}

func NewReconciler(store *store.RecordStore) *Reconciler {
	return &Reconciler{store: store}
}

// Apply merges one batch: incremental events in order, then a prune against
// the batch snapshot. The whole batch is applied under one store lock and
// produces a single change signal.
func (r *Reconciler) Apply(ctx context.Context, batch dto.ChangeBatch) ReconcileResult {
	var res ReconcileResult

	r.store.Batch(func(tx *store.Tx) {
		for _, change := range batch.Changes {
			switch change.Type {
			case constant.ChangeTypeAdded, constant.ChangeTypeModified:
				video, err := decodeVideo(change)
				if err != nil {
					metrics.DecodeFailures.Inc()
					zerolog.Ctx(ctx).Warn().Err(err).Str("video_id", change.ID).Msg("skipping malformed video payload")
					res.Skipped++
					continue
				}
				// last write wins for duplicate adds and early modifies alike
				tx.Upsert(video)
				res.Applied++
			case constant.ChangeTypeRemoved:
				tx.Remove(change.ID)
				res.Applied++
			default:
				metrics.DecodeFailures.Inc()
				zerolog.Ctx(ctx).Warn().Str("video_id", change.ID).Str("change", string(change.Type)).Msg("skipping unknown change type")
				res.Skipped++
			}
		}

		// an incomplete snapshot (e.g. mid-reconnect) would wipe valid records
		if !batch.Complete {
			res.BackstopSkipped = true
			return
		}
		keep := make(map[string]struct{}, len(batch.Snapshot))
		for _, id := range batch.Snapshot {
			keep[id] = struct{}{}
		}
		res.Pruned = tx.Prune(keep)
	})

	metrics.ReconciledBatches.Inc()
	if len(res.Pruned) > 0 {
		metrics.PrunedRecords.Add(float64(len(res.Pruned)))
		zerolog.Ctx(ctx).Debug().Strs("video_ids", res.Pruned).Msg("pruned records missing from snapshot")
	}
	return res
}

func decodeVideo(change dto.ChangeEvent) (entities.Video, error) {
	var video entities.Video
	if err := json.Unmarshal(change.Payload, &video); err != nil {
		return entities.Video{}, fmt.Errorf("%w: %w", constant.ErrDecodeFailed, err)
	}
	if video.ID == "" {
		video.ID = change.ID
	}
	if video.ID == "" || (change.ID != "" && video.ID != change.ID) {
		return entities.Video{}, fmt.Errorf("%w: payload id %q does not match event id %q", constant.ErrDecodeFailed, video.ID, change.ID)
	}
	return video, nil
}
