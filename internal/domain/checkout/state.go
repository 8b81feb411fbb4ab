package checkout

// State is the lifecycle of a checkout session as seen by this service.
type State string

const (
	// StateCreated means the provider session exists and awaits payment.
	StateCreated State = "CREATED"
	// StatePaid means the provider reported the session as paid.
	StatePaid State = "PAID"
	// StateFinalized means an order was recorded for the session.
	StateFinalized State = "FINALIZED"
)

// StateOf derives the state of a provider session, given whether an order
// already exists for it.
func StateOf(s *Session, hasOrder bool) State {
	switch {
	case hasOrder:
		return StateFinalized
	case s != nil && s.PaymentStatus.Paid():
		return StatePaid
	default:
		return StateCreated
	}
}

// CanConfirm reports whether an order may be created from this state.
func (s State) CanConfirm() bool {
	return s == StatePaid
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateFinalized
}

func (s State) String() string {
	return string(s)
}
