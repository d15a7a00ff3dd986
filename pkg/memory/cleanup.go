package memory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brightclass/teachmem/pkg/storage"
)

const (
	// cleanupConfidenceThreshold is the confidence score below which an
	// unverified record becomes a cleanup candidate.
	cleanupConfidenceThreshold = 0.7

	// cleanupRetentionDays is how long a low-confidence record is kept
	// before the sweep may remove it.
	cleanupRetentionDays = 90
)

// Cleanup sweeps an owner's records: it counts records whose expiry has
// already passed and soft-deletes stale low-confidence ones: unverified,
// confidence below 0.7, created more than 90 days ago.
//
// Verified records are never removed regardless of confidence or age.
// Cleanup is best-effort maintenance: any failure is logged and reported
// as zero counts rather than returned, so scheduled sweeps never take a
// caller down with them.
func (c *Client) Cleanup(ctx context.Context, ownerID string) CleanupResult {
	var result CleanupResult

	if err := c.checkClosed(); err != nil {
		log.Printf("teachmem: Cleanup: %v", err)
		return result
	}
	if ownerID == "" {
		log.Printf("teachmem: Cleanup: %v", fmt.Errorf("%w: owner ID is required", ErrInvalidInput))
		return result
	}

	err := c.gate.Run(ctx, func(ctx context.Context) error {
		records, err := c.store.Query(ctx, &storage.QueryOptions{
			OwnerID:        ownerID,
			IncludeExpired: true,
		})
		if err != nil {
			return err
		}

		now := time.Now()
		cutoff := now.AddDate(0, 0, -cleanupRetentionDays)

		var stale []int64
		for _, record := range records {
			if !record.Live(now) {
				result.ExpiredCount++
				continue
			}
			if !record.Verified &&
				record.Confidence < cleanupConfidenceThreshold &&
				record.CreatedAt.Before(cutoff) {
				stale = append(stale, record.ID)
			}
		}

		if len(stale) > 0 {
			if err := c.store.ExpireBatch(ctx, stale, now); err != nil {
				return err
			}
			result.LowConfidenceRemoved = len(stale)
			c.invalidateOwner(ownerID)
		}
		return nil
	})
	if err != nil {
		log.Printf("teachmem: Cleanup: %v", err)
		return CleanupResult{}
	}

	return result
}

// Statistics aggregates memory statistics for one owner across all of
// their records, expired ones included.
func (c *Client) Statistics(ctx context.Context, ownerID string) (*Stats, error) {
	if err := c.checkClosed(); err != nil {
		return nil, newError("Statistics", err)
	}
	if ownerID == "" {
		return nil, newError("Statistics", fmt.Errorf("%w: owner ID is required", ErrInvalidInput))
	}

	var records []*storage.Record
	err := c.gate.Run(ctx, func(ctx context.Context) error {
		var err error
		records, err = c.store.Query(ctx, &storage.QueryOptions{
			OwnerID:        ownerID,
			IncludeExpired: true,
		})
		return err
	})
	if err != nil {
		return nil, storageError("Statistics", err)
	}

	stats := &Stats{
		TotalCount:  len(records),
		CountByType: make(map[Type]int),
	}

	now := time.Now()
	var confidenceSum float64
	for _, record := range records {
		stats.CountByType[Type(record.Type)]++
		confidenceSum += record.Confidence
		if record.Verified {
			stats.VerifiedCount++
		}
		if !record.Live(now) {
			stats.ExpiredCount++
		}
	}
	if len(records) > 0 {
		stats.AverageConfidence = confidenceSum / float64(len(records))
	}

	return stats, nil
}
