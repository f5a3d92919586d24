package models

import (
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// ErrIllegalTransition is returned when a status change is not allowed from
// the stored state.
var ErrIllegalTransition = errors.New("illegal status transition")

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

type ClientStatus string

const (
	ClientStatusApplied        ClientStatus = "applied"
	ClientStatusTrialBooked    ClientStatus = "trial_booked"
	ClientStatusTrialCompleted ClientStatus = "trial_completed"
	ClientStatusActive         ClientStatus = "active"
	ClientStatusCompleted      ClientStatus = "completed"
	ClientStatusInactive       ClientStatus = "inactive"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCancelled ApplicationStatus = "cancelled"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Transitions maps a target state to the states it may be entered from.
type Transitions[S ~string] map[S][]S

// PaymentTransitions: succeeded is terminal, failed may be retried.
var PaymentTransitions = Transitions[PaymentStatus]{
	PaymentStatusProcessing: {PaymentStatusPending, PaymentStatusFailed},
	PaymentStatusSucceeded:  {PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusPending, PaymentStatusProcessing},
}

var ClientTransitions = Transitions[ClientStatus]{
	ClientStatusTrialBooked:    {ClientStatusApplied},
	ClientStatusTrialCompleted: {ClientStatusTrialBooked},
	ClientStatusActive:         {ClientStatusTrialCompleted, ClientStatusInactive, ClientStatusCompleted},
	ClientStatusCompleted:      {ClientStatusActive},
	ClientStatusInactive:       {ClientStatusApplied, ClientStatusTrialBooked, ClientStatusTrialCompleted, ClientStatusActive},
}

var ApplicationTransitions = Transitions[ApplicationStatus]{
	ApplicationStatusApproved:  {ApplicationStatusPending},
	ApplicationStatusRejected:  {ApplicationStatusPending},
	ApplicationStatusCancelled: {ApplicationStatusPending, ApplicationStatusApproved},
}

var SessionTransitions = Transitions[SessionStatus]{
	SessionStatusCompleted: {SessionStatusScheduled},
	SessionStatusCancelled: {SessionStatusScheduled},
}

// Allows reports whether from -> to is legal. Staying in place is always allowed.
func (t Transitions[S]) Allows(from, to S) bool {
	if from == to {
		return true
	}
	return slices.Contains(t[to], from)
}

// Check is Allows with an error carrying both states.
func (t Transitions[S]) Check(from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// From returns the predecessors of to as plain strings for use in queries.
func (t Transitions[S]) From(to S) []string {
	preds := t[to]
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		out = append(out, string(p))
	}
	return out
}

// Known reports whether s appears anywhere in the table.
func (t Transitions[S]) Known(s S) bool {
	if _, ok := t[s]; ok {
		return true
	}
	for _, preds := range t {
		if slices.Contains(preds, s) {
			return true
		}
	}
	return false
}

type TransitionResult int

const (
	TransitionApplied TransitionResult = iota
	TransitionNoop
	TransitionRejected
)

func (r TransitionResult) String() string {
	switch r {
	case TransitionApplied:
		return "applied"
	case TransitionNoop:
		return "noop"
	default:
		return "rejected"
	}
}

// CompareAndSet moves column of the row with the given id to `to` when the
// stored value is one of its allowed predecessors, writing extra in the same
// statement. When no row changed the stored value is re-read to tell a
// repeated write (TransitionNoop) from an illegal one (TransitionRejected).
// A missing row yields gorm.ErrRecordNotFound.
func CompareAndSet[S ~string](db *gorm.DB, model any, id, column string, table Transitions[S], to S, extra map[string]any) (TransitionResult, S, error) {
	updates := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		updates[k] = v
	}
	updates[column] = string(to)

	tx := db.Model(model).Where("id = ? AND "+column+" IN ?", id, table.From(to)).Updates(updates)
	if tx.Error != nil {
		return TransitionRejected, "", tx.Error
	}
	if tx.RowsAffected > 0 {
		return TransitionApplied, to, nil
	}

	var current []string
	if err := db.Model(model).Where("id = ?", id).Pluck(column, &current).Error; err != nil {
		return TransitionRejected, "", err
	}
	if len(current) == 0 {
		return TransitionRejected, "", gorm.ErrRecordNotFound
	}
	if S(current[0]) == to {
		return TransitionNoop, to, nil
	}
	return TransitionRejected, S(current[0]), nil
}
