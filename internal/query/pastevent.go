// internal/query/pastevent.go
package query

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Past event queries.
 *
 * With a generated property key the filter reads the profile counter:
 *
 *   eventsOccurred     nested(pastEvents, key = k and count in [min, max])
 *   eventsNotOccurred  not nested(pastEvents, key = k)
 *                      or nested(pastEvents, key = k and count = 0)
 *
 * The counter filter is itself built as a condition and compiled through
 * the dispatcher, so it evaluates the same way it queries.
 *
 * Without a key, stored events are aggregated by profileId and the
 * profiles whose count lies in [max(min, 1), max] become an ids filter,
 * negated for eventsNotOccurred. The aggregation is partitioned so no
 * single request returns more than the bucket size: the partition count
 * is derived from the number of matching events, an upper bound on the
 * number of distinct profiles. Partitions are fetched concurrently.
 */

const (
	profileIDField       = "profileId"
	partitionConcurrency = 4
)

type pastEventBuilder struct{}

func (pastEventBuilder) Build(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error) {
	pe, err := conditions.LoadPastEvent(c)
	if err != nil {
		return nil, err
	}
	if pe.Key != "" {
		counter, err := d.counterCondition(pe)
		if err != nil {
			return nil, err
		}
		return d.BuildFilter(ctx, counter)
	}

	d.cfg.logger.Debug(logMsgLegacyPastEvent, logAttrTypeID, c.TypeID)
	ids, err := d.matchingProfileIDs(ctx, pe, params)
	if err != nil {
		return nil, err
	}
	if len(ids) > d.cfg.maxIDs {
		d.cfg.logger.Warn(logMsgTooManyProfileIDs, logAttrCount, len(ids))
	}
	return d.BuildFilter(ctx, idsCondition(ids, pe.Operator == conditions.PastEventsOccurred))
}

// Count counts profiles matching a past event condition.
func (pastEventBuilder) Count(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (int64, error) {
	pe, err := conditions.LoadPastEvent(c)
	if err != nil {
		return 0, err
	}
	p := d.persistence()
	if p == nil {
		return 0, types.ErrNoPersistence
	}
	if pe.Key != "" {
		counter, err := d.counterCondition(pe)
		if err != nil {
			return 0, err
		}
		return p.QueryCount(ctx, counter, types.ItemTypeProfile)
	}

	d.cfg.logger.Debug(logMsgLegacyPastEvent, logAttrTypeID, c.TypeID)
	ids, err := d.matchingProfileIDs(ctx, pe, params)
	if err != nil {
		return 0, err
	}
	if pe.Operator == conditions.PastEventsOccurred {
		return int64(len(ids)), nil
	}
	return p.QueryCount(ctx, idsCondition(ids, false), types.ItemTypeProfile)
}

// counterCondition expresses the counter lookup of pe as a condition.
func (d *Dispatcher) counterCondition(pe conditions.PastEvent) (*types.Condition, error) {
	b := conditions.NewBuilder(d.resolver.Registry())
	key := func() *conditions.Item {
		return b.ProfileProperty(conditions.PastEventsKeyPath).Equals(pe.Key)
	}
	if pe.Operator == conditions.PastEventsNotOccurred {
		return b.Or(
			b.Nested(conditions.PastEventsProperty, key()).Not(),
			b.Nested(conditions.PastEventsProperty, b.And(
				key(),
				b.ProfileProperty(conditions.PastEventsCountPath).Equals(0),
			)),
		).Build()
	}
	return b.Nested(conditions.PastEventsProperty, b.And(
		key(),
		b.ProfileProperty(conditions.PastEventsCountPath).Between(pe.EffectiveMin(), pe.Max),
	)).Build()
}

func idsCondition(ids []string, match bool) *types.Condition {
	return types.NewCondition(types.IDsConditionID).
		SetParameter("ids", types.Strings(ids...)).
		SetParameter("match", types.Bool(match))
}

// matchingProfileIDs aggregates the event window of pe by profile and
// keeps the profiles whose count lies in [max(min, 1), max], sorted.
func (d *Dispatcher) matchingProfileIDs(ctx context.Context, pe conditions.PastEvent, params conditions.Params) ([]string, error) {
	counts, err := d.eventCountsByProfile(ctx, pe, params)
	if err != nil {
		d.cfg.logger.Error(logMsgAggregationFailed, logAttrError, err)
		return nil, err
	}
	lo := pe.EffectiveMin()
	ids := make([]string, 0, len(counts))
	for id, n := range counts {
		if n >= lo && n <= pe.Max {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *Dispatcher) eventCountsByProfile(ctx context.Context, pe conditions.PastEvent, params conditions.Params) (map[string]int64, error) {
	p := d.persistence()
	if p == nil {
		return nil, types.ErrNoPersistence
	}
	window, err := pe.EventWindow(params)
	if err != nil {
		return nil, err
	}
	if !d.resolver.ResolveConditionType(window, "past event aggregation") {
		return nil, fmt.Errorf("%w: past event window", types.ErrUnresolvedCondition)
	}

	if d.cfg.disablePartitions {
		return p.AggregateQuery(ctx, window, conditions.Aggregate{Field: profileIDField, Size: d.cfg.bucketSize}, types.ItemTypeEvent)
	}

	total, err := p.QueryCount(ctx, window, types.ItemTypeEvent)
	if err != nil {
		return nil, err
	}
	parts := int(total/int64(d.cfg.bucketSize)) + 2
	d.cfg.logger.Debug(logMsgPartitionedCount, logAttrPartitions, parts, logAttrCount, total)

	var (
		mu     sync.Mutex
		counts = make(map[string]int64)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(partitionConcurrency)
	for i := 0; i < parts; i++ {
		agg := conditions.Aggregate{Field: profileIDField, Partition: i, NumPartitions: parts, Size: d.cfg.bucketSize}
		g.Go(func() error {
			part, err := p.AggregateQuery(gctx, window, agg, types.ItemTypeEvent)
			if err != nil {
				return fmt.Errorf("partition %d/%d: %w", agg.Partition, agg.NumPartitions, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for id, n := range part {
				counts[id] += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}
