// Package orderref issues human-readable order references of the form
// CMERCH-<year>-<seq>, with a sequence that restarts every calendar year.
package orderref

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
)

const (
	Prefix    = "CMERCH"
	seqDigits = 6
)

const nextSeqSQL = `INSERT INTO order_counters (year, seq, updated_at) VALUES (?, 1, ?)
ON CONFLICT (year) DO UPDATE SET seq = order_counters.seq + 1, updated_at = excluded.updated_at
RETURNING seq`

// Generator hands out order references inside the caller's transaction.
type Generator interface {
	Next(ctx context.Context, tx *gorm.DB, year int) (int64, error)
	Issue(ctx context.Context, tx *gorm.DB, now time.Time) (string, error)
}

type generator struct{}

func NewGenerator() Generator {
	return generator{}
}

// Next atomically increments and returns the counter for year. The upsert
// takes a row lock, so concurrent checkouts in the same year are serialized
// until their transactions finish.
func (generator) Next(ctx context.Context, tx *gorm.DB, year int) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeOrder, "transaction required for order reference")
	}
	if year < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "year must be positive")
	}
	var seq int64
	if err := tx.WithContext(ctx).Raw(nextSeqSQL, year, time.Now().UTC()).Scan(&seq).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "increment order counter")
	}
	if seq < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeOrder, "order counter returned no sequence")
	}
	return seq, nil
}

// Issue returns the next reference for the UTC year of now.
func (g generator) Issue(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	year := now.UTC().Year()
	seq, err := g.Next(ctx, tx, year)
	if err != nil {
		return "", err
	}
	return Format(year, seq), nil
}

// Format renders a reference; the sequence is zero-padded to six digits and
// grows wider past 999999.
func Format(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%0*d", Prefix, year, seqDigits, seq)
}

// Parse splits a reference back into its year and sequence.
func Parse(ref string) (int, int64, error) {
	parts := strings.Split(strings.TrimSpace(ref), "-")
	if len(parts) != 3 || !strings.EqualFold(parts[0], Prefix) {
		return 0, 0, fmt.Errorf("malformed order reference %q", ref)
	}
	if len(parts[1]) != 4 {
		return 0, 0, fmt.Errorf("malformed year in order reference %q", ref)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed year in order reference %q: %w", ref, err)
	}
	if len(parts[2]) < seqDigits {
		return 0, 0, fmt.Errorf("malformed sequence in order reference %q", ref)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return 0, 0, fmt.Errorf("malformed sequence in order reference %q", ref)
	}
	return year, seq, nil
}
