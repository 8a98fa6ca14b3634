package escalation

import (
	"context"
	"errors"
)

type multiNotifier []Notifier

// Multi fans a notification out to every non-nil notifier. It succeeds if at
// least one of them delivered.
func Multi(notifiers ...Notifier) Notifier {
	var m multiNotifier
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multiNotifier) Notify(ctx context.Context, subject, body string) error {
	if len(m) == 0 {
		return ErrMailNotConfigured
	}
	var errs []error
	delivered := false
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
