package usecase

import (
	"time"

	"pet-subscription-sync/internal/domain/model"
)

// PaymentSignal is the payment outcome carried by the event being applied.
type PaymentSignal string

const (
	SignalNone             PaymentSignal = ""
	SignalPaymentFailed    PaymentSignal = "payment_failed"
	SignalPaymentSucceeded PaymentSignal = "payment_succeeded"
)

type PolicyInput struct {
	Prior           model.SubscriberStatus
	PaymentFailedAt *time.Time
	GracePeriodEnd  *time.Time

	HasCurrent        bool
	HasPaymentProblem bool

	Signal PaymentSignal
	Now    time.Time
}

// Decision is the status and grace-window state to be written. A nil
// window means the window is cleared.
type Decision struct {
	Status          model.SubscriberStatus
	PaymentFailedAt *time.Time
	GracePeriodEnd  *time.Time
	ReactivatedAt   *time.Time
	Canceled        bool
}

// GracePeriodPolicy is the subscriber status state machine. It holds no
// state; the same input always yields the same decision.
type GracePeriodPolicy struct{}

func (GracePeriodPolicy) Evaluate(in PolicyInput) Decision {
	now := in.Now
	delinquent := in.Prior == model.SubscriberStatusGrace || in.Prior == model.SubscriberStatusSuspended

	if in.Signal == SignalPaymentSucceeded {
		switch {
		case delinquent:
			return Decision{Status: model.SubscriberStatusActive, ReactivatedAt: &now}
		case in.Prior == model.SubscriberStatusActive:
			return Decision{Status: model.SubscriberStatusActive}
		}
	}

	if in.HasCurrent && in.Signal != SignalPaymentFailed {
		d := Decision{Status: model.SubscriberStatusActive}
		if delinquent {
			d.ReactivatedAt = &now
		}
		return d
	}

	if in.HasPaymentProblem || in.Signal == SignalPaymentFailed {
		if in.PaymentFailedAt == nil || in.GracePeriodEnd == nil {
			failedAt := now
			end := now.Add(model.GracePeriod)
			return Decision{
				Status:          model.SubscriberStatusGrace,
				PaymentFailedAt: &failedAt,
				GracePeriodEnd:  &end,
			}
		}
		d := Decision{
			Status:          model.SubscriberStatusGrace,
			PaymentFailedAt: in.PaymentFailedAt,
			GracePeriodEnd:  in.GracePeriodEnd,
		}
		if now.After(*in.GracePeriodEnd) {
			d.Status = model.SubscriberStatusSuspended
		}
		return d
	}

	return Decision{
		Status:   model.SubscriberStatusInactive,
		Canceled: in.Prior == model.SubscriberStatusActive || delinquent,
	}
}
