package session

import "time"

// AfterFunc schedules f to run after d, like time.AfterFunc. Exposed as a
// package variable so tests can replace it with a synchronous stand-in and
// avoid sleeping through the real 300ms mode-detect retry window.
var AfterFunc = func(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, f)
}
