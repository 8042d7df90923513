package assign

import "time"

// HasConflict reports whether accepting prospective would double-book the
// partner against existing. An instant job that has not been accepted yet
// is anchored at the current time.
func HasConflict(prospective Job, existing []Job) bool {
	return HasConflictAt(prospective, existing, time.Now())
}

// HasConflictAt is HasConflict with an explicit anchor for an unaccepted
// instant job.
func HasConflictAt(prospective Job, existing []Job, now time.Time) bool {
	if prospective.Kind == KindInstant && prospective.AcceptedAt == nil {
		at := now
		prospective.AcceptedAt = &at
	}
	for _, e := range existing {
		if conflicts(prospective, e) {
			return true
		}
	}
	return false
}

func conflicts(a, b Job) bool {
	// only one instant job may be in flight at a time
	if a.Kind == KindInstant && b.Kind == KindInstant {
		return true
	}
	aStart, aEnd, ok := a.Window()
	if !ok {
		return false
	}
	bStart, bEnd, ok := b.Window()
	if !ok {
		return false
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
