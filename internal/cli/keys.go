package cli

import (
	"github.com/aretw0/tempo/pkg/domain"
)

// SpeedStep is how much one +/- key press changes the delay.
const SpeedStep = 50

// Action is what the play loop does after a key press.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionRestart
)

// Controls is the part of the playback controller the keys drive.
type Controls interface {
	State() domain.PlaybackState
	Pause() error
	Resume() error
	StepOnce() error
	Speed() int
	SetSpeed(ms int) int
}

// HandleKey applies one key press:
//
//	p, space  pause / resume
//	s         step (pauses a running run first)
//	+, =      faster (shorter delay)
//	-, _      slower
//	r         restart
//	q, ^C     quit
func HandleKey(c Controls, key byte) (Action, error) {
	switch key {
	case 'p', ' ':
		if c.State() == domain.StatePaused {
			return ActionNone, c.Resume()
		}
		return ActionNone, c.Pause()
	case 's':
		if c.State() == domain.StateRunning {
			return ActionNone, c.Pause()
		}
		return ActionNone, c.StepOnce()
	case '+', '=':
		c.SetSpeed(c.Speed() - SpeedStep)
	case '-', '_':
		c.SetSpeed(c.Speed() + SpeedStep)
	case 'r':
		return ActionRestart, nil
	case 'q', 3:
		return ActionQuit, nil
	}
	return ActionNone, nil
}
