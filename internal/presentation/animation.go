// Package presentation renders presence results for people: the staged
// loading animation, the stat card and the share link.
package presentation

import (
	"context"
	"math"
	"time"
)

// Stage is a loading message shown from Threshold percent onwards.
type Stage struct {
	Threshold float64
	Message   string
}

var stages = []Stage{ //nolint:gochecknoglobals // fixed stage table
	{Threshold: 0, Message: "Fetching UserData..."},
	{Threshold: 18, Message: "Checking Mindshare Consistency..."},
	{Threshold: 36, Message: "Scanning Yapper Activity..."},
	{Threshold: 57, Message: "Checking zkGM Count..."},
	{Threshold: 77, Message: "Calculating UnionMaxi Synergy..."},
	{Threshold: 94, Message: "Compiling Stats & Score..."},
	{Threshold: 100, Message: "Complete! Welcome to your zkPresence!"},
}

// Stages returns a copy of the stage table in threshold order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// StageMessage returns the message of the last stage whose threshold is at
// or below progress.
func StageMessage(progress float64) string {
	msg := stages[0].Message
	for _, s := range stages {
		if progress >= s.Threshold {
			msg = s.Message
		}
	}
	return msg
}

// Frame is one step of the loading animation.
type Frame struct {
	Progress float64
	Message  string
}

const (
	defaultDuration     = 3 * time.Second
	defaultFrames       = 60
	defaultInitialDelay = 250 * time.Millisecond
	defaultHold         = 600 * time.Millisecond
)

// AnimatorOption configures an Animator.
type AnimatorOption func(*Animator)

// WithDuration sets the time from the first step to 100%.
func WithDuration(d time.Duration) AnimatorOption {
	return func(a *Animator) {
		if d >= 0 {
			a.duration = d
		}
	}
}

// WithFrames sets the number of steps to 100%.
func WithFrames(n int) AnimatorOption {
	return func(a *Animator) {
		if n > 0 {
			a.frames = n
		}
	}
}

// WithInitialDelay sets the pause before the first step.
func WithInitialDelay(d time.Duration) AnimatorOption {
	return func(a *Animator) {
		if d >= 0 {
			a.initialDelay = d
		}
	}
}

// WithHold sets how long 100% stays on screen before completion.
func WithHold(d time.Duration) AnimatorOption {
	return func(a *Animator) {
		if d >= 0 {
			a.hold = d
		}
	}
}

// Animator drives the staged progress display.
type Animator struct {
	duration     time.Duration
	frames       int
	initialDelay time.Duration
	hold         time.Duration
}

// NewAnimator returns an animator with the default 3s, 60-frame timing.
func NewAnimator(opts ...AnimatorOption) *Animator {
	a := &Animator{
		duration:     defaultDuration,
		frames:       defaultFrames,
		initialDelay: defaultInitialDelay,
		hold:         defaultHold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run calls render with the 0% frame, waits the initial delay, then steps to
// 100% over the configured duration. After the hold it calls onDone exactly
// once. If ctx ends first, Run returns its error and onDone is not called.
func (a *Animator) Run(ctx context.Context, render func(Frame), onDone func()) error {
	if render == nil {
		render = func(Frame) {}
	}
	render(Frame{Progress: 0, Message: stages[0].Message})

	if err := sleep(ctx, a.initialDelay); err != nil {
		return err
	}

	step := a.duration / time.Duration(a.frames)
	for i := 1; i <= a.frames; i++ {
		progress := math.Min(100, float64(i)*100/float64(a.frames))
		render(Frame{Progress: progress, Message: StageMessage(progress)})

		wait := step
		if i == a.frames {
			wait = a.hold
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	if onDone != nil {
		onDone()
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
