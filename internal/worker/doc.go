// Package worker moves the copy and store step of a backup off the caller's
// goroutine.
//
// A [Pool] receives [Request] values on a channel and answers each with a
// [Response]. It implements engine.Backend, so the engine handles its results
// exactly like an in-process store. Requests for the same conversation that
// arrive while one is running share its result.
package worker
