package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hedgegrid/internal/core"
	"hedgegrid/internal/identity"
	"hedgegrid/internal/syncshield"
)

// taggedPosition is a broker position whose comment parsed as a managed
// tag, paired with the decoded tag.
type taggedPosition struct {
	pos core.Position
	tag identity.Tag
}

// partitionPositions splits req.Positions by decoded side. Positions whose
// comment does not parse (foreign) are dropped entirely: they are neither
// managed nor counted in any aggregate.
func partitionPositions(positions []core.Position) (buy, sell []taggedPosition) {
	for _, p := range positions {
		tag, ok := identity.Decode(p.Comment)
		if !ok {
			continue
		}
		tp := taggedPosition{pos: p, tag: tag}
		if tag.Side == core.SideBuy {
			buy = append(buy, tp)
		} else {
			sell = append(sell, tp)
		}
	}
	return buy, sell
}

// validateIdentity implements step 2: every tagged position belonging to a
// side with a non-empty session_id must carry that session's hash.
func validateIdentity(s *side, tagged []taggedPosition) (conflict bool, msg string) {
	if s.runtime.SessionID == "" {
		return false, ""
	}
	want := sessionHash(s.runtime.SessionID)
	for _, tp := range tagged {
		if tp.tag.Hash != want {
			return true, fmt.Sprintf("identity conflict: %s side expected hash %s, got %s", s.id, want, tp.tag.Hash)
		}
	}
	return false, ""
}

// updateExecMap implements step 3: upsert every tagged position into the
// exec map, then drop any index that no longer appears.
func updateExecMap(s *side, tagged []taggedPosition, now float64) {
	seen := make(map[int]bool, len(tagged))
	for _, tp := range tagged {
		s.runtime.ExecMap[tp.tag.Index] = core.RowExecStats{
			Index:      tp.tag.Index,
			EntryPrice: tp.pos.Price,
			Lots:       tp.pos.Volume,
			Profit:     tp.pos.Profit,
			Timestamp:  now,
		}
		seen[tp.tag.Index] = true
	}
	for idx := range s.runtime.ExecMap {
		if !seen[idx] {
			delete(s.runtime.ExecMap, idx)
		}
	}
}

// checkHedge implements step 4. Returns true exactly when a hedge just
// triggered on s this tick, so the caller can invoke the hedge controller
// on the opposite side.
func checkHedge(s *side) bool {
	if s.runtime.HedgeTriggered || s.runtime.IsClosing {
		return false
	}
	if len(s.runtime.ExecMap) == 0 {
		return false
	}
	if s.settings.HedgeValue.IsZero() {
		return false
	}
	sideProfit := s.runtime.AggregateProfit()
	if sideProfit.LessThanOrEqual(s.settings.HedgeValue.Neg()) {
		s.runtime.HedgeTriggered = true
		return true
	}
	return false
}

// checkTP implements step 5, transitioning s into Closing when the target
// is met.
func checkTP(s *side, market core.Market) bool {
	if s.runtime.HedgeTriggered || s.runtime.IsClosing {
		return false
	}
	if s.settings.TPValue.IsZero() || s.settings.TPType == core.TPDisabled {
		return false
	}
	if len(s.runtime.ExecMap) == 0 {
		return false
	}

	var target decimal.Decimal
	switch s.settings.TPType {
	case core.TPEquityPct:
		base := market.Equity
		if s.runtime.EquityAtArmIsSet {
			base = s.runtime.EquityAtArm
		}
		target = s.settings.TPValue.Div(decimal.NewFromInt(100)).Mul(base)
	case core.TPBalancePct:
		target = s.settings.TPValue.Div(decimal.NewFromInt(100)).Mul(market.Balance)
	case core.TPFixedMoney:
		target = s.settings.TPValue
	}

	sideProfit := s.runtime.AggregateProfit()
	if sideProfit.GreaterThanOrEqual(target) {
		s.runtime.IsClosing = true
		return true
	}
	return false
}

// checkExternalClose implements step 6: a side whose positions vanished
// without the engine having ordered a close is treated as externally
// closed, once the sync-shield grace window has elapsed.
func checkExternalClose(s *side, positionCount int, now float64, cyclicOn bool) {
	if s.runtime.SessionID == "" || s.runtime.IsClosing {
		return
	}
	if positionCount != 0 {
		return
	}
	// No order has been sent since the side was last reset, so there are
	// no positions that could have vanished.
	if s.runtime.LastOrderSentTS == 0 {
		return
	}
	if syncshield.InFlight(s.runtime.LastOrderSentTS, time.Unix(0, int64(now*float64(time.Second)))) {
		return
	}

	drainSide(s, cyclicOn)
}

// candidate is one side's pending emission for this tick, ranked by tier
// (lower fires first) then by side for the BUY-before-SELL tie-break.
type candidate struct {
	side    core.Side
	tier    int
	action  core.Action
	volume  decimal.Decimal
	comment string
	alert   bool
}

const (
	tierClose = iota
	tierExpansion
)

// buildCandidates returns zero or one candidate emission for s: a
// limit-wait/expansion fire for an armed side, or a CLOSE_ALL re-emission
// for a side still draining. hedgeInjected defers an expansion this tick
// for a side the hedge controller just mutated onto, so the counter order
// fires on the next tick instead of the same one. positionCount and now let
// a Closing side skip re-emitting CLOSE_ALL once the drain is already
// complete and about to be finalized.
func buildCandidates(s *side, market core.Market, hedgeInjected bool, positionCount int, now float64) []candidate {
	if s.runtime.IsClosing {
		if positionCount == 0 && !syncshield.InFlight(s.runtime.LastOrderSentTS, time.Unix(0, int64(now*float64(time.Second)))) {
			return nil
		}
		return []candidate{{
			side:    s.id,
			tier:    tierClose,
			action:  core.ActionCloseAll,
			comment: closeComment(s.id, s.runtime.SessionID),
		}}
	}

	if !s.runtime.On || s.runtime.HedgeTriggered || hedgeInjected {
		return nil
	}

	k := len(s.runtime.ExecMap)
	if k >= len(s.settings.Rows) {
		return nil
	}

	// Row 0 already sent but not yet confirmed by the broker (exec_map
	// still empty): don't resend a second market/limit order while it's
	// still within the sync-shield grace window.
	if k == 0 && syncshield.InFlight(s.runtime.LastOrderSentTS, time.Unix(0, int64(now*float64(time.Second)))) {
		return nil
	}

	if s.runtime.WaitingLimit {
		if !limitCrossed(s.id, s.settings.LimitPrice, market) {
			return nil
		}
		s.runtime.WaitingLimit = false
	}

	if k == 0 {
		row := s.settings.Rows[0]
		s.runtime.StartRef = fillPrice(s.id, market)
		s.runtime.EquityAtArm = market.Equity
		s.runtime.EquityAtArmIsSet = true
		return []candidate{{
			side:    s.id,
			tier:    tierExpansion,
			action:  actionFor(s.id),
			volume:  row.Lots,
			comment: identity.Encode(s.id, sessionHash(s.runtime.SessionID), 0),
			alert:   row.Alert,
		}}
	}

	prev, ok := s.runtime.ExecMap[k-1]
	if !ok {
		return nil
	}
	row := s.settings.Rows[k]
	if !expansionTriggered(s.id, prev.EntryPrice, row.DollarGap, market) {
		return nil
	}

	return []candidate{{
		side:    s.id,
		tier:    tierExpansion,
		action:  actionFor(s.id),
		volume:  row.Lots,
		comment: identity.Encode(s.id, sessionHash(s.runtime.SessionID), k),
		alert:   row.Alert,
	}}
}

// closingCompletion implements step 9.
func closingCompletion(s *side, positionCount int, now float64, cyclicOn bool) {
	if !s.runtime.IsClosing {
		return
	}
	if positionCount != 0 {
		return
	}
	if syncshield.InFlight(s.runtime.LastOrderSentTS, time.Unix(0, int64(now*float64(time.Second)))) {
		return
	}

	drainSide(s, cyclicOn)
}

// drainSide clears a fully-closed side's session, then re-arms it
// immediately when cyclic restart is on and the operator never turned it
// off themselves.
func drainSide(s *side, cyclicOn bool) {
	wasOn := s.runtime.On
	resetSide(s)
	if cyclicOn && wasOn {
		rearm(s)
	} else {
		s.runtime.On = false
	}
}

func resetSide(s *side) {
	s.runtime.ExecMap = make(map[int]core.RowExecStats)
	s.runtime.SessionID = ""
	s.runtime.IsClosing = false
	s.runtime.HedgeTriggered = false
	s.runtime.StartRef = decimal.Zero
	s.runtime.EquityAtArm = decimal.Zero
	s.runtime.EquityAtArmIsSet = false
	s.runtime.WaitingLimit = false
	s.runtime.LastOrderSentTS = 0
}

func rearm(s *side) {
	s.runtime.On = true
	s.runtime.SessionID = identity.NewSessionID(s.id)
	if s.settings.LimitPrice.IsPositive() {
		s.runtime.WaitingLimit = true
	} else {
		s.runtime.WaitingLimit = false
	}
}

// pickAction applies the emission priority: close > expansion/row-0, BUY
// before SELL within a tier, at most one emission overall. The returned
// side pointer is nil on WAIT, and otherwise names whose last_order_sent_ts
// the caller must stamp.
func pickAction(candidates []candidate) (TickResponse, *core.Side) {
	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.tier < best.tier || (c.tier == best.tier && c.side == core.SideBuy && best.side == core.SideSell) {
			best = c
		}
	}
	if best == nil {
		return waitResponse(), nil
	}
	resp := TickResponse{Action: best.action, Volume: best.volume, Comment: best.comment, Alert: best.alert}
	s := best.side
	return resp, &s
}

func actionFor(s core.Side) core.Action {
	if s == core.SideBuy {
		return core.ActionBuy
	}
	return core.ActionSell
}

func fillPrice(s core.Side, market core.Market) decimal.Decimal {
	if s == core.SideBuy {
		return market.Ask
	}
	return market.Bid
}

func limitCrossed(s core.Side, limit decimal.Decimal, market core.Market) bool {
	if s == core.SideBuy {
		return market.Ask.LessThanOrEqual(limit)
	}
	return market.Bid.GreaterThanOrEqual(limit)
}

func expansionTriggered(s core.Side, prevEntry, gap decimal.Decimal, market core.Market) bool {
	if s == core.SideBuy {
		return market.Ask.LessThanOrEqual(prevEntry.Sub(gap))
	}
	return market.Bid.GreaterThanOrEqual(prevEntry.Add(gap))
}

func closeComment(s core.Side, sessionID string) string {
	if sessionID == "" {
		return s.String() + "_close"
	}
	return sessionID
}

// sessionHash extracts the hash segment from a "{side}_{hash}" session id.
func sessionHash(sessionID string) string {
	prefix := len(sessionID) - 8
	if prefix < 0 {
		return sessionID
	}
	return sessionID[prefix:]
}
