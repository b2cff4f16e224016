package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tempo/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured line per event.
// Snapshots are logged at Debug; everything else at Info, failures at Error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	log := func(level slog.Level) func(context.Context, *domain.RunEvent) {
		return func(ctx context.Context, e *domain.RunEvent) {
			attrs := []any{
				"run_id", e.RunID,
				"generation", e.Generation,
				"algorithm", e.Algorithm,
			}
			if e.Seq > 0 {
				attrs = append(attrs, "seq", e.Seq)
			}
			if e.Elapsed > 0 {
				attrs = append(attrs, "elapsed", e.Elapsed)
			}
			if e.Type == domain.EventSpeed || e.Type == domain.EventStart {
				attrs = append(attrs, "speed_ms", e.Speed)
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Log(ctx, level, string(e.Type), attrs...)
		}
	}
	return domain.LifecycleHooks{
		OnStart:      log(slog.LevelInfo),
		OnSnapshot:   log(slog.LevelDebug),
		OnPause:      log(slog.LevelInfo),
		OnResume:     log(slog.LevelInfo),
		OnCancel:     log(slog.LevelInfo),
		OnComplete:   log(slog.LevelInfo),
		OnFail:       log(slog.LevelError),
		OnStaleWrite: log(slog.LevelWarn),
		OnSpeed:      log(slog.LevelInfo),
	}
}
