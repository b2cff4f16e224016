/*
Package ports defines the driven ports (interfaces) of the Tempo playback engine.

These interfaces decouple the playback harness from the algorithms it replays
and from whoever watches the replay, allowing the same controller to serve a
terminal renderer, an HTTP/SSE client, an MCP agent or a Redis fan-out.

# Key Interfaces

  - Definition: The define(input) factory that yields a fresh WorkingState and StepSource.
  - StepSource: A lazy, finite, non-rewindable sequence of Steps.
  - WorkingState: The mutable data a run operates over.
  - Observer: Receives every published Snapshot; must not block.
  - DistributedLocker: Serializes session commands across replicas.
*/
package ports
