package order

import (
	"fmt"

	"dapur-be/internal/notify"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusDelivered},
}

var timestampColumns = map[Status]string{
	StatusConfirmed: "confirmed_at",
	StatusPreparing: "preparing_at",
	StatusReady:     "ready_at",
	StatusDelivered: "delivered_at",
	StatusCancelled: "cancelled_at",
}

var notificationKinds = map[Status]notify.Kind{
	StatusPending:   notify.KindOrderPlaced,
	StatusConfirmed: notify.KindConfirmed,
	StatusPreparing: notify.KindPreparing,
	StatusReady:     notify.KindReady,
	StatusDelivered: notify.KindDelivered,
	StatusCancelled: notify.KindCancelled,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := notificationKinds[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether by may cancel an order in from. Customers and
// admins follow the same lifecycle; only the recorded initiator differs.
func CanCancel(from Status, by Initiator) bool {
	switch by {
	case InitiatorCustomer, InitiatorAdmin:
		return CanTransition(from, StatusCancelled)
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// KindForStatus returns the notification sent when an order enters s.
func KindForStatus(s Status) (notify.Kind, bool) {
	k, ok := notificationKinds[s]
	return k, ok
}
