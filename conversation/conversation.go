// Package conversation implements the select-then-confirm dialog used by interactive commands: a numbered menu
// of rosters, a yes/no confirmation and a timeout for every step.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTimedOut  = errors.New("conversation timed out")
	ErrCancelled = errors.New("conversation cancelled")
	ErrNoOptions = errors.New("nothing to choose from")
)

type State int

const (
	StateSelecting State = iota
	StateConfirming
	StateDone
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateConfirming:
		return "confirming"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Final reports whether the conversation is over in state s.
func (s State) Final() bool {
	return s == StateDone || s == StateCancelled || s == StateTimedOut
}

// transitions lists the allowed next states.
var transitions = map[State][]State{
	StateSelecting:  {StateSelecting, StateConfirming, StateCancelled, StateTimedOut},
	StateConfirming: {StateSelecting, StateDone, StateCancelled, StateTimedOut},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Option is one menu entry.
type Option struct {
	ChannelID string
	Label     string
}

// NewOptions builds the menu entries. Empty labels are replaced by the channel id, repeated labels get a numeric
// suffix ("vAS", "vAS1", "vAS2").
func NewOptions(entries []Option) []Option {
	used := make(map[string]struct{}, len(entries))
	res := make([]Option, 0, len(entries))
	for _, e := range entries {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			label = e.ChannelID
		}
		if _, ok := used[label]; ok {
			for n := 1; ; n++ {
				candidate := label + strconv.Itoa(n)
				if _, ok := used[candidate]; !ok {
					label = candidate
					break
				}
			}
		}
		used[label] = struct{}{}
		res = append(res, Option{ChannelID: e.ChannelID, Label: label})
	}
	return res
}

// Timeouts per step, zero means no timeout.
type Timeouts struct {
	Select  time.Duration
	Confirm time.Duration
}

var DefaultTimeouts = Timeouts{Select: 15 * time.Second, Confirm: 30 * time.Second}

type Conversation struct {
	action   string
	options  []Option
	state    State
	selected int
	notice   string
}

// New starts a conversation about action ("close", "fill", ...) on one of the options.
func New(action string, options []Option) *Conversation {
	return &Conversation{action: action, options: options, state: StateSelecting, selected: -1}
}

func (c *Conversation) State() State {
	return c.state
}

// Selected returns the chosen option once the conversation is done.
func (c *Conversation) Selected() (Option, bool) {
	if c.state != StateDone || c.selected < 0 {
		return Option{}, false
	}
	return c.options[c.selected], true
}

func (c *Conversation) transition(to State) error {
	if !canTransition(c.state, to) {
		return fmt.Errorf("invalid transition from %s to %s", c.state, to)
	}
	c.state = to
	return nil
}

func (c *Conversation) move(to State) (State, error) {
	err := c.transition(to)
	return c.state, err
}

// Prompt is the text to show for the current state.
func (c *Conversation) Prompt() string {
	b := strings.Builder{}
	if c.notice != "" {
		b.WriteString(c.notice)
		b.WriteString("\n")
	}
	switch c.state {
	case StateSelecting:
		fmt.Fprintf(&b, "Select a roster to %s:\n", c.action)
		for i, o := range c.options {
			fmt.Fprintf(&b, "%d: %s\n", i+1, o.Label)
		}
		b.WriteString("0: exit\n")
	case StateConfirming:
		fmt.Fprintf(&b, "%s %s (%s)? (y/n)\n", c.action, c.options[c.selected].Label, c.options[c.selected].ChannelID)
	case StateCancelled:
		b.WriteString("Cancelled.\n")
	case StateTimedOut:
		b.WriteString("Timed out.\n")
	}
	return b.String()
}

// Handle feeds one line of input into the conversation and returns the new state. An invalid menu choice keeps
// the menu open, "n" at the confirmation goes back to the menu.
func (c *Conversation) Handle(input string) (State, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	c.notice = ""
	switch c.state {
	case StateSelecting:
		n, err := strconv.Atoi(input)
		switch {
		case err == nil && n == 0:
			return c.move(StateCancelled)
		case err != nil || n < 0 || n > len(c.options):
			c.notice = fmt.Sprintf("%q is not a valid choice.", input)
			return c.move(StateSelecting)
		}
		c.selected = n - 1
		return c.move(StateConfirming)

	case StateConfirming:
		switch input {
		case "y", "yes":
			return c.move(StateDone)
		case "n", "no":
			c.selected = -1
			return c.move(StateSelecting)
		}
		c.notice = "Please answer y or n."
		return c.state, nil
	}
	return c.state, fmt.Errorf("conversation is %s", c.state)
}

// Timeout ends the conversation.
func (c *Conversation) Timeout() error {
	return c.transition(StateTimedOut)
}

// Run drives the conversation with lines from inputs, writing prompts to out. It returns the confirmed option,
// ErrCancelled, ErrTimedOut or the context's error.
func Run(ctx context.Context, c *Conversation, inputs <-chan string, out io.Writer, timeouts Timeouts) (Option, error) {
	if len(c.options) == 0 {
		return Option{}, ErrNoOptions
	}
	for !c.state.Final() {
		if _, err := io.WriteString(out, c.Prompt()); err != nil {
			return Option{}, err
		}
		timeout := timeouts.Select
		if c.state == StateConfirming {
			timeout = timeouts.Confirm
		}
		if err := step(ctx, c, inputs, timeout); err != nil {
			return Option{}, err
		}
	}
	_, _ = io.WriteString(out, c.Prompt())
	switch c.state {
	case StateCancelled:
		return Option{}, ErrCancelled
	case StateTimedOut:
		return Option{}, ErrTimedOut
	}
	o, _ := c.Selected()
	return o, nil
}

func step(ctx context.Context, c *Conversation, inputs <-chan string, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case input, ok := <-inputs:
		if !ok {
			return ErrCancelled
		}
		_, err := c.Handle(input)
		return err
	case <-timer:
		return c.Timeout()
	case <-ctx.Done():
		return ctx.Err()
	}
}
