package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/internal/config"
	"github.com/aretw0/tempo/internal/presentation/tui"
	"github.com/aretw0/tempo/pkg/adapters/loam"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/observability"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultScenarioDir is used when the config names no scenario directory.
const DefaultScenarioDir = "scenarios"

// PlayOptions configures the interactive player.
type PlayOptions struct {
	Algorithm string
	Input     string // JSON object; empty selects the algorithm's sample
	Speed     *int   // overrides scenario and config
	Scenario  string
	Config    config.Config
	Debug     bool

	Out io.Writer // defaults to os.Stdout
	Err io.Writer // logs; defaults to os.Stderr
	In  io.Reader // key presses; nil disables controls
}

type playJob struct {
	algorithm string
	input     map[string]any
	speed     int
	notes     string
}

// Play replays one algorithm in the terminal until it completes, fails or the
// user quits, then prints a summary.
func Play(ctx context.Context, opts PlayOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	logger, err := NewLogger(opts.Err, opts.Config, opts.Debug)
	if err != nil {
		return err
	}

	job, err := resolveJob(ctx, opts)
	if err != nil {
		return err
	}

	engine := tempo.New(
		tempo.WithLogger(logger),
		tempo.WithSpeed(job.speed),
		tempo.WithWindow(opts.Config.Window),
		tempo.WithLifecycleHooks(observability.LogHooks(logger)),
	)
	c, err := engine.Controller(job.algorithm)
	if err != nil {
		return err
	}
	defer c.Close()

	obs := newPlayObserver()
	defer c.Subscribe(obs)()

	// The markdown style is picked before raw mode and the key reader take
	// over stdin, since detecting it may query the terminal.
	markdown := tui.NewRenderer(terminalWidth(opts.Out))

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()

	out := opts.Out
	var keys chan byte
	if opts.In != nil {
		if restore, ok := makeRaw(opts.In, logger); ok {
			defer restore()
			out = crlfWriter{out}
		}
		keys = make(chan byte, 8)
		done := make(chan struct{})
		go func() {
			defer close(done)
			readKeys(loopCtx, opts.In, keys)
		}()
		defer releaseReader(opts.In, stop, done)
	}

	screen := termenv.NewOutput(opts.Out)
	p := &player{
		out:      out,
		screen:   screen,
		clear:    screen.Profile != termenv.Ascii,
		bars:     tui.NewBarRenderer(screen.Profile, terminalWidth(opts.Out)),
		markdown: markdown,
	}

	runID, err := c.Start(ctx, job.input)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.Cancel()
			outcome, _ := c.Wait(context.WithoutCancel(ctx))
			p.finish(c, outcome, job.notes)
			return nil

		case snap := <-obs.frames:
			if snap.RunID != runID {
				continue
			}
			p.draw(tui.Frame{Snapshot: snap, State: c.State(), Speed: c.Speed()})

		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			action, err := HandleKey(c, key)
			if err != nil {
				logger.Debug("key ignored", "key", string(key), "error", err)
			}
			switch action {
			case ActionQuit:
				c.Cancel()
				outcome, _ := c.Wait(context.WithoutCancel(ctx))
				p.finish(c, outcome, job.notes)
				return nil
			case ActionRestart:
				if runID, err = c.Start(ctx, job.input); err != nil {
					return err
				}
				obs.dropStale(runID)
			default:
				if snap, ok := c.CurrentSnapshot(); ok {
					p.draw(tui.Frame{Snapshot: snap, State: c.State(), Speed: c.Speed()})
				}
			}

		case outcome := <-obs.outcomes:
			// Restarts report the replaced run as cancelled.
			if outcome.Status == domain.StateCancelled {
				continue
			}
			p.finish(c, outcome, job.notes)
			return outcome.Err
		}
	}
}

// resolveJob merges the scenario preset, flags and config into one job.
func resolveJob(ctx context.Context, opts PlayOptions) (playJob, error) {
	job := playJob{
		algorithm: opts.Algorithm,
		speed:     opts.Config.SpeedMS,
	}

	if opts.Scenario != "" {
		dir := opts.Config.Scenarios.Dir
		if dir == "" {
			dir = DefaultScenarioDir
		}
		presets, err := loam.Open(dir)
		if err != nil {
			return job, err
		}
		sc, err := presets.Get(ctx, opts.Scenario)
		if err != nil {
			return job, err
		}
		if job.algorithm != "" && job.algorithm != sc.Algorithm {
			return job, domain.Invalid("algorithm", "scenario %q plays %q, not %q", sc.Name, sc.Algorithm, job.algorithm)
		}
		job.algorithm = sc.Algorithm
		job.input = sc.Input
		job.speed = sc.SpeedOr(job.speed)
		job.notes = sc.Notes
	}

	if job.algorithm == "" {
		return job, fmt.Errorf("%w: no algorithm or scenario given", domain.ErrUnknownAlgorithm)
	}
	if opts.Input != "" {
		input, err := parseInput(opts.Input)
		if err != nil {
			return job, err
		}
		job.input = input
	}
	if opts.Speed != nil {
		job.speed = *opts.Speed
	}
	job.speed = domain.ClampSpeed(job.speed)
	return job, nil
}

type player struct {
	out      io.Writer
	screen   *termenv.Output
	clear    bool
	bars     *tui.BarRenderer
	markdown func(string) (string, error)
}

func (p *player) draw(f tui.Frame) {
	if p.clear {
		p.screen.ClearScreen()
	}
	fmt.Fprintln(p.out, p.bars.Render(f))
	if p.clear {
		fmt.Fprintln(p.out, p.screen.String("p pause  s step  +/- speed  r restart  q quit").Faint())
	}
}

func (p *player) finish(c *playback.Controller, outcome domain.Outcome, notes string) {
	last, ok := c.CurrentSnapshot()
	if ok {
		p.draw(tui.Frame{Snapshot: last, State: c.State(), Speed: c.Speed()})
	}
	md := tui.Summary(outcome, last, notes)
	rendered, err := p.markdown(md)
	if err != nil {
		rendered = md
	}
	fmt.Fprintln(p.out, rendered)
}

// playObserver hands snapshots to the play loop without ever blocking the
// publisher. Only the latest frame matters; older ones are dropped.
type playObserver struct {
	frames   chan domain.Snapshot
	outcomes chan domain.Outcome
}

func newPlayObserver() *playObserver {
	return &playObserver{
		frames:   make(chan domain.Snapshot, 1),
		outcomes: make(chan domain.Outcome, 4),
	}
}

func (o *playObserver) OnSnapshot(s domain.Snapshot) {
	select {
	case o.frames <- s:
		return
	default:
	}
	select {
	case <-o.frames:
	default:
	}
	select {
	case o.frames <- s:
	default:
	}
}

// dropStale discards a pending frame that belongs to another run.
func (o *playObserver) dropStale(runID string) {
	select {
	case s := <-o.frames:
		if s.RunID == runID {
			select {
			case o.frames <- s:
			default:
				// A newer frame arrived meanwhile.
			}
		}
	default:
	}
}

func (o *playObserver) OnOutcome(out domain.Outcome) {
	select {
	case o.outcomes <- out:
	default:
	}
}

// makeRaw switches a terminal reader to raw mode so single key presses
// arrive without Enter.
func makeRaw(in io.Reader, logger *slog.Logger) (func(), bool) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, false
	}
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		logger.Warn("raw mode unavailable, keys need Enter", "error", err)
		return nil, false
	}
	return func() { _ = term.Restore(int(f.Fd()), state) }, true
}

// readKeys forwards single bytes from in until it fails or ctx is done.
// A Read that is already blocked only returns once in yields a byte or an
// error; releaseReader forces that for readers with deadlines. On a plain
// terminal the goroutine lives until the next key press or process exit.
func readKeys(ctx context.Context, in io.Reader, keys chan<- byte) {
	defer close(keys)
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if n == 1 && buf[0] != '\n' && buf[0] != '\r' {
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// releaseReader stops the key reader and, when in supports deadlines, waits
// for it to exit and clears the deadline so in can be read again.
func releaseReader(in io.Reader, stop context.CancelFunc, done <-chan struct{}) {
	stop()
	d, ok := in.(deadliner)
	if !ok || d.SetReadDeadline(time.Now()) != nil {
		return
	}
	<-done
	_ = d.SetReadDeadline(time.Time{})
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return 80
}

// crlfWriter restores line starts while the terminal is in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}
