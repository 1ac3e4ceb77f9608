// Package numbering issues sale numbers of the form YYMMDDNNN: the sale's
// calendar day followed by a per-day sequence, zero padded to three digits.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/store"
)

// FallbackID is the placeholder number older clients wrote when the counter
// could not be read. It is returned alongside every error; this package
// never hands it out on success.
const FallbackID = "000000000"

// DayKey is the counter key for the day of date.
func DayKey(date time.Time) string {
	return date.Format("060102")
}

// Format joins a day key and sequence number. Sequences past 999 widen the
// number rather than wrap.
func Format(dayKey string, n int) string {
	return fmt.Sprintf("%s%03d", dayKey, n)
}

// Issue reads, increments and writes the day's counter. It must run inside
// an atomic unit when more than one sale can be confirmed at a time.
func Issue(ctx context.Context, counters store.Collection[domain.DailyCounter], date time.Time) (string, error) {
	key := DayKey(date)
	counter, err := counters.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return FallbackID, fmt.Errorf("read counter %s: %w", key, err)
	}
	counter.ID = key
	counter.Value++
	if _, err := counters.Put(ctx, counter); err != nil {
		return FallbackID, fmt.Errorf("write counter %s: %w", key, err)
	}
	return Format(key, counter.Value), nil
}
