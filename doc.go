/*
Package tempo is an instrumented algorithm playback engine.

It replays an algorithm one discrete Step at a time so that every intermediate
state can be observed, paused, stepped through, slowed down or cancelled. Each
run owns a cancellation token; when a run is cancelled or superseded by a new
Start, nothing it does afterwards reaches observers.

# Concept

An algorithm definition turns an input into a WorkingState (an array, a graph,
a DP grid, text pointers) and a lazy StepSource. The sequencer applies one Step,
publishes an immutable Snapshot, then parks at a suspension point where the
pacer applies the speed delay and the pause gate. The playback controller owns
the state machine:

	Idle --Start--> Running --Pause--> Paused --Resume--> Running
	Running|Paused --Cancel/Reset--> Idle
	Running --exhausted--> Completed --Start--> Running

# Usage

	eng := tempo.New(tempo.WithSpeed(50))
	outcome, err := eng.Play(ctx, "quick", map[string]any{"values": []int{5, 3, 1, 4}},
		ports.ObserverFunc(func(s domain.Snapshot) {
			fmt.Println(s.Seq, s.Op, s.Marks)
		}))

For multi-user hosts, Engine.Sessions returns a session.Manager holding one
controller per session ID; the HTTP and MCP adapters are built on it.
*/
package tempo
