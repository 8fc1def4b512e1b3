// Package debounce coalesces bursts of activity into one delayed call.
//
// A [Trigger] owns a single cancellable timer. [Trigger.Fire] restarts the
// quiescence window, [Trigger.Cancel] discards the pending run and
// [Trigger.Flush] runs it immediately. Timers that were superseded by a later
// Fire or Cancel never run the action, even if they had already expired.
package debounce
