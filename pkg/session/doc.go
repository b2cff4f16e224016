/*
Package session names playback controllers so several users (HTTP clients,
MCP agents) can each drive their own run.

Control operations on one session are serialized by a per-session,
reference-counted mutex. When a DistributedLocker is configured the same
operations also take a cluster-wide lock, so replicas fronting a shared Redis
never interleave commands for one session.
*/
package session
