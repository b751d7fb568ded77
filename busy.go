package signup

import "sync/atomic"

// PendingFlag counts in-flight calls for one operation. It is pending
// while at least one call has not settled.
type PendingFlag struct {
	inflight atomic.Int32
}

// Begin marks a call as in flight. The returned func settles it and is
// safe to call more than once.
func (p *PendingFlag) Begin() func() {
	if p == nil {
		return func() {}
	}
	p.inflight.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			p.inflight.Add(-1)
		}
	}
}

// Pending reports whether any call is in flight
func (p *PendingFlag) Pending() bool {
	if p == nil {
		return false
	}
	return p.inflight.Load() > 0
}

// BusyState is a snapshot of the three sources behind the busy flag
type BusyState struct {
	AccountPending bool `json:"account_pending"`
	SessionPending bool `json:"session_pending"`
	SessionLoading bool `json:"session_loading"`
}

// Busy is true when any source is pending
func (b BusyState) Busy() bool {
	return BusyFlag(b.AccountPending, b.SessionPending, b.SessionLoading)
}

// BusyFlag is the logical OR of the pending sources
func BusyFlag(accountPending, sessionPending, sessionLoading bool) bool {
	return accountPending || sessionPending || sessionLoading
}

func readBusyState(account, session *PendingFlag, sessionCtx SessionContext) BusyState {
	state := BusyState{
		AccountPending: account.Pending(),
		SessionPending: session.Pending(),
	}
	if sessionCtx != nil {
		state.SessionLoading = sessionCtx.IsLoading()
	}
	return state
}
