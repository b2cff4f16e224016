/*
Package domain contains the core domain models of the Tempo playback engine.

It defines the vocabulary shared by the harness and its collaborators: the
playback state machine, the arena-style Step produced by algorithm definitions,
the immutable Snapshot handed to observers, and the error taxonomy. This package
is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - PlaybackState: Idle, Running, Paused, Cancelled, Completed.
  - Step: One atomic unit of algorithm progress (mutate + mark).
  - Snapshot: An owned copy of the working state plus display metadata.
  - Outcome: The single terminal report of a run.
*/
package domain
