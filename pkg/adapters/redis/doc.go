// Package redis fans playback snapshots out through Redis and provides the
// distributed session locker.
//
// Keys, for a prefix P and session S:
//
//	P events:S   pub/sub channel carrying JSON envelopes
//	P latest:S   latest snapshot envelope (expires after the TTL)
//	P history:S  rolling list of recent snapshot envelopes
//	P outcome:S  terminal report of the latest finished run
//	P lock:S     session lock (SET NX PX)
package redis
