// Package engine is the heartbeat decision core: it ingests one tick at a
// time, runs the ordered pipeline over both sides, and emits at most one
// action. All mutation is funneled through OnTick/ApplySettings/
// ApplyControl under one mutex, a single-writer event loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hedgegrid/internal/core"
	"hedgegrid/internal/hedge"
	"hedgegrid/internal/identity"
	"hedgegrid/internal/logging"
	"hedgegrid/internal/sidefsm"
	"hedgegrid/internal/state"
	"hedgegrid/internal/telemetry"
	"hedgegrid/pkg/apperrors"
)

// side bundles one accumulation side's identity with pointers into the
// engine's own settings/runtime fields, so the per-side pipeline helpers
// in pipeline.go can stay side-agnostic.
type side struct {
	id       core.Side
	settings *core.UserSettings
	runtime  *core.RuntimeState
}

// Engine owns both sides' settings and runtime state plus the shared
// market snapshot. Every exported method takes the mutex, so callers never
// need their own locking — this is the single-writer serialized loop.
type Engine struct {
	mu sync.Mutex

	buySettings  core.UserSettings
	buyRuntime   core.RuntimeState
	sellSettings core.UserSettings
	sellRuntime  core.RuntimeState

	cyclicOn    bool
	errorStatus string
	market      core.Market
	lastUpdate  float64

	graceWindow time.Duration

	tickSeq uint64

	store  state.Store
	logger logging.Logger
	tracer trace.Tracer
}

// New constructs an engine seeded with initial per-side settings, restoring
// persisted runtime state from store if a snapshot exists.
func New(ctx context.Context, buySettings, sellSettings core.UserSettings, cyclicOn bool, graceWindow time.Duration, store state.Store, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		buySettings:  buySettings,
		buyRuntime:   core.NewRuntimeState(),
		sellSettings: sellSettings,
		sellRuntime:  core.NewRuntimeState(),
		cyclicOn:     cyclicOn,
		graceWindow:  graceWindow,
		store:        store,
		logger:       logger,
		tracer:       telemetry.GetTracer("engine"),
	}

	snap, err := store.LoadState(ctx)
	if err != nil {
		e.errorStatus = fmt.Sprintf("snapshot load failed, using defaults: %v", err)
		logger.Warn("snapshot load failed", "error", err)
		return e, nil
	}
	if snap != nil {
		e.buySettings = snap.Buy.Settings
		e.buyRuntime = snap.Buy.Runtime
		e.sellSettings = snap.Sell.Settings
		e.sellRuntime = snap.Sell.Runtime
		e.cyclicOn = snap.CyclicOn
	}
	if e.buyRuntime.ExecMap == nil {
		e.buyRuntime.ExecMap = make(map[int]core.RowExecStats)
	}
	if e.sellRuntime.ExecMap == nil {
		e.sellRuntime.ExecMap = make(map[int]core.RowExecStats)
	}
	return e, nil
}

// OnTick runs the full per-tick pipeline and returns the single emitted
// action.
func (e *Engine) OnTick(ctx context.Context, req TickRequest) (TickResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.OnTick")
	defer span.End()

	start := time.Now()
	metrics := telemetry.GetGlobalMetrics()
	if metrics != nil {
		metrics.TicksTotal.Add(ctx, 1)
	}

	e.tickSeq++
	tickSeq := e.tickSeq

	// 1. Ingest & snapshot.
	e.market = req.Market
	e.lastUpdate = req.Now

	buyFromState := sidefsm.Derive(e.buyRuntime)
	sellFromState := sidefsm.Derive(e.sellRuntime)

	buy := side{id: core.SideBuy, settings: &e.buySettings, runtime: &e.buyRuntime}
	sell := side{id: core.SideSell, settings: &e.sellSettings, runtime: &e.sellRuntime}

	// 2. Identity validation.
	buyTagged, sellTagged := partitionPositions(req.Positions)

	buyConflict, buyConflictMsg := validateIdentity(&buy, buyTagged)
	sellConflict, sellConflictMsg := validateIdentity(&sell, sellTagged)
	if buyConflict {
		e.errorStatus = buyConflictMsg
	}
	if sellConflict {
		e.errorStatus = sellConflictMsg
	}

	// 3. Execution-map update — skipped for a conflicted side: its map is
	// frozen until the conflict clears via emergency close.
	if !buyConflict {
		updateExecMap(&buy, buyTagged, req.Now)
	}
	if !sellConflict {
		updateExecMap(&sell, sellTagged, req.Now)
	}

	buyHedgeInjected, sellHedgeInjected := false, false

	// 4. Hedge check.
	if !buyConflict && checkHedge(&buy) {
		hedge.Trigger(core.SideSell, &e.sellSettings, &e.sellRuntime, buy.runtime.AggregateLots(), e.market, identity.NewSessionID(core.SideSell))
		sellHedgeInjected = true
		if metrics != nil {
			metrics.HedgeTriggerTotal.Add(ctx, 1, attribute.String("side", core.SideBuy.String()))
		}
	}
	if !sellConflict && checkHedge(&sell) {
		hedge.Trigger(core.SideBuy, &e.buySettings, &e.buyRuntime, sell.runtime.AggregateLots(), e.market, identity.NewSessionID(core.SideBuy))
		buyHedgeInjected = true
		if metrics != nil {
			metrics.HedgeTriggerTotal.Add(ctx, 1, attribute.String("side", core.SideSell.String()))
		}
	}

	// 5. TP check.
	if !buyConflict && checkTP(&buy, e.market) {
		if metrics != nil {
			metrics.TPCloseTotal.Add(ctx, 1, attribute.String("side", core.SideBuy.String()))
		}
	}
	if !sellConflict && checkTP(&sell, e.market) {
		if metrics != nil {
			metrics.TPCloseTotal.Add(ctx, 1, attribute.String("side", core.SideSell.String()))
		}
	}

	// 6. External-close check.
	if !buyConflict {
		checkExternalClose(&buy, len(buyTagged), req.Now, e.cyclicOn)
	}
	if !sellConflict {
		checkExternalClose(&sell, len(sellTagged), req.Now, e.cyclicOn)
	}

	// 7/8. Expansion and waiting-limit checks produce candidate emissions.
	var candidates []candidate
	if !buyConflict {
		candidates = append(candidates, buildCandidates(&buy, e.market, buyHedgeInjected, len(buyTagged), req.Now)...)
	}
	if !sellConflict {
		candidates = append(candidates, buildCandidates(&sell, e.market, sellHedgeInjected, len(sellTagged), req.Now)...)
	}

	resp, emittingSide := pickAction(candidates)
	if emittingSide != nil {
		e.markOrderSent(*emittingSide, req.Now)
	}

	// 9. Closing completion.
	if !buyConflict {
		closingCompletion(&buy, len(buyTagged), req.Now, e.cyclicOn)
	}
	if !sellConflict {
		closingCompletion(&sell, len(sellTagged), req.Now, e.cyclicOn)
	}

	if metrics != nil {
		metrics.ActionsTotal.Add(ctx, 1, attribute.String("action", resp.Action.String()))
		metrics.TickLatency.Record(ctx, time.Since(start).Seconds())
	}

	if emittingSide != nil && resp.Action != core.ActionWait {
		fromState, toState := buyFromState, sidefsm.Derive(e.buyRuntime)
		if *emittingSide == core.SideSell {
			fromState, toState = sellFromState, sidefsm.Derive(e.sellRuntime)
		}
		e.logger.Info("committed transition",
			"side", emittingSide.String(),
			"from_state", fromState.String(),
			"to_state", toState.String(),
			"action", resp.Action.String(),
			"tick_seq", tickSeq,
		)
	}

	if err := e.persist(ctx); err != nil {
		e.logger.Error("snapshot persist failed", "error", err)
	}

	return resp, nil
}

func (e *Engine) markOrderSent(s core.Side, now float64) {
	if s == core.SideBuy {
		e.buyRuntime.LastOrderSentTS = now
	} else {
		e.sellRuntime.LastOrderSentTS = now
	}
}

func (e *Engine) persist(ctx context.Context) error {
	snap := &state.Snapshot{
		Buy:       state.SideSnapshot{Settings: e.buySettings, Runtime: e.buyRuntime},
		Sell:      state.SideSnapshot{Settings: e.sellSettings, Runtime: e.sellRuntime},
		CyclicOn:  e.cyclicOn,
		UpdatedAt: e.lastUpdate,
	}
	if err := e.store.SaveState(ctx, snap); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// ErrorStatus returns the latched error string, empty when healthy.
func (e *Engine) ErrorStatus() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorStatus
}

// StoreHealthy reports whether the durable store is currently reachable.
func (e *Engine) StoreHealthy(ctx context.Context) error {
	e.mu.Lock()
	store := e.store
	e.mu.Unlock()
	return store.Healthy(ctx)
}
