package risk

import (
	"time"
)

// Limits holds the static risk limits loaded from configuration
type Limits struct {
	DailyLossLimitPct    float64
	MaxConsecutiveLosses int
	Cooldown             time.Duration
}

// State holds the mutable safety state. It is owned exclusively by the
// Manager and mutated only through RecordTradePnL and the kill-switch
// setters.
type State struct {
	KillSwitch        bool
	ConsecutiveLosses int
	LastLossTime      time.Time
	DailyPnL          float64
	DayStart          time.Time
}

// Manager is the safety gate consulted before every trade. The block
// conditions are evaluated fresh on each CanTrade call, in a fixed
// precedence order: kill switch, daily loss limit, consecutive losses.
type Manager struct {
	limits        Limits
	initialEquity float64
	state         State
	now           func() time.Time
}

// NewManager creates a new risk manager
func NewManager(limits Limits, initialEquity float64) *Manager {
	m := &Manager{
		limits:        limits,
		initialEquity: initialEquity,
		now:           time.Now,
	}
	m.state.DayStart = m.now().UTC()
	return m
}

// EnableKillSwitch engages the kill switch. Idempotent.
func (m *Manager) EnableKillSwitch() {
	m.state.KillSwitch = true
}

// DisableKillSwitch releases the kill switch. Idempotent.
func (m *Manager) DisableKillSwitch() {
	m.state.KillSwitch = false
}

// KillSwitchEngaged reports whether the kill switch is currently engaged
func (m *Manager) KillSwitchEngaged() bool {
	return m.state.KillSwitch
}

// RecordTradePnL feeds a realized trade outcome into the safety state.
// A losing trade extends the streak and stamps the loss time; any
// non-negative outcome clears the streak. Cooldown timing is not cleared by
// a win, it expires on its own.
func (m *Manager) RecordTradePnL(pnl float64) {
	m.resetIfNewDay()

	m.state.DailyPnL += pnl
	if pnl < 0 {
		m.state.ConsecutiveLosses++
		m.state.LastLossTime = m.now().UTC()
	} else {
		m.state.ConsecutiveLosses = 0
	}
}

// CanTrade reports whether trading is currently permitted, with a
// human-readable reason when it is not.
func (m *Manager) CanTrade() (bool, string) {
	m.resetIfNewDay()

	if m.state.KillSwitch {
		return false, "kill switch enabled"
	}
	if m.dailyLossLimitHit() {
		return false, "daily loss limit reached"
	}
	if m.state.ConsecutiveLosses >= m.limits.MaxConsecutiveLosses {
		if m.inCooldown() {
			return false, "cooldown active after consecutive losses"
		}
		// Cooldown elapsed but the streak only resets via a winning trade
		// or a new day.
		return false, "max consecutive losses reached"
	}

	return true, "OK"
}

// ConsecutiveLosses returns the current loss streak length
func (m *Manager) ConsecutiveLosses() int {
	return m.state.ConsecutiveLosses
}

// DailyPnL returns the realized PnL accumulated since the start of the
// current UTC day.
func (m *Manager) DailyPnL() float64 {
	return m.state.DailyPnL
}

// resetIfNewDay zeroes the daily counters when the UTC calendar date has
// changed since DayStart. Applied lazily before every read or write of the
// state.
func (m *Manager) resetIfNewDay() {
	now := m.now().UTC()
	ny, nm, nd := now.Date()
	dy, dm, dd := m.state.DayStart.Date()
	if ny != dy || nm != dm || nd != dd {
		m.state.DailyPnL = 0
		m.state.ConsecutiveLosses = 0
		m.state.LastLossTime = time.Time{}
		m.state.DayStart = now
	}
}

func (m *Manager) dailyLossLimitHit() bool {
	return m.state.DailyPnL <= -(m.initialEquity * m.limits.DailyLossLimitPct)
}

func (m *Manager) inCooldown() bool {
	if m.state.LastLossTime.IsZero() {
		return false
	}
	return m.now().UTC().Before(m.state.LastLossTime.Add(m.limits.Cooldown))
}
