package data

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PendingPaymentStatus    PaymentStatus = "PENDING"
	ToConfirmPaymentStatus  PaymentStatus = "TO_CONFIRM"
	AuthorizedPaymentStatus PaymentStatus = "AUTHORIZED"
	FailedPaymentStatus     PaymentStatus = "FAILED"
	CanceledPaymentStatus   PaymentStatus = "CANCELED"
	RefundedPaymentStatus   PaymentStatus = "REFUNDED"
	AbandonedPaymentStatus  PaymentStatus = "ABANDONED"
)

// Validate validates the payment status
func (status PaymentStatus) Validate() error {
	switch PaymentStatus(strings.ToUpper(string(status))) {
	case PendingPaymentStatus, ToConfirmPaymentStatus, AuthorizedPaymentStatus,
		FailedPaymentStatus, CanceledPaymentStatus, RefundedPaymentStatus, AbandonedPaymentStatus:
		return nil
	default:
		return fmt.Errorf("invalid payment status: %s", status)
	}
}

// TransitionTo transitions the payment status to the target state
func (status PaymentStatus) TransitionTo(targetState PaymentStatus) error {
	return PaymentStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// PaymentStateMachineWithInitialState returns a state machine for payments initialized with the given state.
// FAILED, CANCELED, REFUNDED and ABANDONED are terminal; AUTHORIZED may only move to REFUNDED.
func PaymentStateMachineWithInitialState(initialState PaymentStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingPaymentStatus.State(), To: ToConfirmPaymentStatus.State()},    // provider still deciding
		{From: PendingPaymentStatus.State(), To: AuthorizedPaymentStatus.State()},   // provider authorized the payment
		{From: PendingPaymentStatus.State(), To: FailedPaymentStatus.State()},       // provider rejected the payment
		{From: PendingPaymentStatus.State(), To: CanceledPaymentStatus.State()},     // provider voided the payment
		{From: PendingPaymentStatus.State(), To: AbandonedPaymentStatus.State()},    // attempt budget exhausted or timeout
		{From: ToConfirmPaymentStatus.State(), To: AuthorizedPaymentStatus.State()}, // confirmation resolved positively
		{From: ToConfirmPaymentStatus.State(), To: FailedPaymentStatus.State()},     // confirmation resolved negatively
		{From: ToConfirmPaymentStatus.State(), To: CanceledPaymentStatus.State()},   // provider voided while confirming
		{From: ToConfirmPaymentStatus.State(), To: AbandonedPaymentStatus.State()},  // attempt budget exhausted
		{From: AuthorizedPaymentStatus.State(), To: RefundedPaymentStatus.State()},  // money returned after authorization
	}

	return NewStateMachine(initialState.State(), transitions)
}

// PaymentStatuses returns a list of all possible payment statuses
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PendingPaymentStatus, ToConfirmPaymentStatus, AuthorizedPaymentStatus,
		FailedPaymentStatus, CanceledPaymentStatus, RefundedPaymentStatus, AbandonedPaymentStatus,
	}
}

// SourceStatuses returns a list of states that the payment status can transition from given the target state
func (status PaymentStatus) SourceStatuses() []PaymentStatus {
	stateMachine := PaymentStateMachineWithInitialState(PendingPaymentStatus)
	fromStates := []PaymentStatus{}
	for _, fromState := range PaymentStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

// IsTerminal reports whether no transition leaves the status.
func (status PaymentStatus) IsTerminal() bool {
	stateMachine := PaymentStateMachineWithInitialState(status)
	return len(stateMachine.Transitions[status.State()]) == 0
}

// TimestampColumn returns the payment column holding the first-transition timestamp
// for this status, or "" when the status has no dedicated column.
func (status PaymentStatus) TimestampColumn() string {
	switch status {
	case AuthorizedPaymentStatus:
		return "first_authorized_at"
	case FailedPaymentStatus:
		return "failed_at"
	case CanceledPaymentStatus:
		return "canceled_at"
	case RefundedPaymentStatus:
		return "refunded_at"
	default:
		// ABANDONED has no timestamp column.
		return ""
	}
}

// ToPaymentStatus converts a string to a PaymentStatus
func ToPaymentStatus(s string) (PaymentStatus, error) {
	err := PaymentStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return PaymentStatus(strings.ToUpper(s)), nil
}

func (status PaymentStatus) State() State {
	return State(status)
}
