package order

// OrderState implements the state pattern for order lifecycle transitions.
//
//	pending  -> paid | cancel | timeout
//	cancel   -> pending (resume)
//	timeout  -> pending (resume)
//	paid     -> dispensed
//
// Closing an already closed order is a no-op so a late timer cannot overwrite a
// manual close.
type OrderState interface {
	Status() Status
	OnPaid(o *Order) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
	OnExpired(o *Order) (OrderState, error)
	OnResumed(o *Order) (OrderState, error)
	OnDispensed(o *Order, records []DispenseRecord) (OrderState, error)
}

func stateFor(s Status) (OrderState, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusPaid:
		return paidState{}, nil
	case StatusCancel:
		return closedState{status: StatusCancel}, nil
	case StatusTimeout:
		return closedState{status: StatusTimeout}, nil
	case StatusDispensed:
		return dispensedState{}, nil
	}
	return nil, ErrInvalidStatus
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaid(*Order) (OrderState, error) { return paidState{}, nil }

func (pendingState) OnCancelled(*Order) (OrderState, error) {
	return closedState{status: StatusCancel}, nil
}

func (pendingState) OnExpired(*Order) (OrderState, error) {
	return closedState{status: StatusTimeout}, nil
}

func (pendingState) OnResumed(*Order) (OrderState, error) { return pendingState{}, nil }

func (pendingState) OnDispensed(*Order, []DispenseRecord) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnPaid(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (paidState) OnCancelled(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (paidState) OnExpired(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (paidState) OnResumed(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (paidState) OnDispensed(o *Order, records []DispenseRecord) (OrderState, error) {
	o.Dispenses = append(make([]DispenseRecord, 0, len(records)), records...)
	return dispensedState{}, nil
}

// closedState covers cancel and timeout; both are terminal until resumed.
type closedState struct{ status Status }

func (s closedState) Status() Status { return s.status }

func (closedState) OnPaid(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (s closedState) OnCancelled(*Order) (OrderState, error) { return s, nil }

func (s closedState) OnExpired(*Order) (OrderState, error) { return s, nil }

func (closedState) OnResumed(*Order) (OrderState, error) { return pendingState{}, nil }

func (closedState) OnDispensed(*Order, []DispenseRecord) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type dispensedState struct{}

func (dispensedState) Status() Status { return StatusDispensed }

func (dispensedState) OnPaid(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (dispensedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (dispensedState) OnExpired(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (dispensedState) OnResumed(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (dispensedState) OnDispensed(*Order, []DispenseRecord) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}
