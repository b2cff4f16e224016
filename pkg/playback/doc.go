/*
Package playback provides the Controller: the state machine that starts,
pauses, resumes, steps, cancels and resets runs of an algorithm definition.

	Idle --Start--> Running --Pause--> Paused --Resume--> Running
	Running/Paused --Cancel/Reset--> Idle
	Running --exhausted--> Completed (accepts Start like Idle)
	Running --definition error--> Idle (failed outcome reported once)

Each run owns one cancellation token. Starting while a run is active cancels
it first by minting a new token; the old run wakes from any delay or pause,
sees its token is stale, and exits without touching the working state or
publishing again.

Observers receive snapshots on the run's goroutine. They may read the
controller (State, CurrentSnapshot) and call Pause, Resume, StepOnce or
SetSpeed, but must not call Start, Cancel or Reset, which wait for in-flight
deliveries to finish.
*/
package playback
