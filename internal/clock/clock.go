// Package clock abstracts time for components that schedule work,
// so idle and recycle behavior can be tested without sleeping.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
