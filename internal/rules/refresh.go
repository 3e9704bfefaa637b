package rules

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/condengine/internal/types"
)

// Refresh recompiles rules against the currently deployed types, at most
// the configured number of workers at a time, and installs the results.
// It returns how many of them went from invalid (or undeployed) to valid.
// Nothing is installed when ctx is cancelled first.
func (e *Engine) Refresh(ctx context.Context, rules []*types.Rule) (int, error) {
	start := time.Now()
	compiled := make([]*CompiledRule, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.workers)
	for i, r := range rules {
		if r == nil {
			continue
		}
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			compiled[i] = Compile(e.resolver, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	enabled, invalid := 0, 0
	installed := compiled[:0]
	for _, cr := range compiled {
		if cr == nil {
			continue
		}
		prev, ok := e.Rule(cr.ID())
		switch {
		case cr.Valid && (!ok || !prev.Valid):
			enabled++
			e.cfg.logger.Info(logMsgRuleValid, logAttrRuleID, cr.ID())
		case !cr.Valid:
			invalid++
		}
		installed = append(installed, cr)
	}
	e.install(installed)

	e.cfg.logger.Info(logMsgRefreshDone,
		logAttrRules, len(installed),
		logAttrEnabled, enabled,
		logAttrInvalid, invalid,
		logAttrDurationMS, time.Since(start).Milliseconds())
	return enabled, nil
}

// RefreshInvalid recompiles every deployed rule that is currently invalid.
func (e *Engine) RefreshInvalid(ctx context.Context) (int, error) {
	var rules []*types.Rule
	for _, cr := range e.Rules() {
		if !cr.Valid {
			rules = append(rules, cr.Rule)
		}
	}
	if len(rules) == 0 {
		return 0, nil
	}
	return e.Refresh(ctx, rules)
}
