package conversation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rosters = []Option{{ChannelID: "c1", Label: "vAS"}, {ChannelID: "c2", Label: "vAS"}, {ChannelID: "c3", Label: ""}, {ChannelID: "c4", Label: "vAS1"}}

func TestNewOptionsDisambiguates(t *testing.T) {
	assert.Equal(t, []Option{
		{ChannelID: "c1", Label: "vAS"},
		{ChannelID: "c2", Label: "vAS1"},
		{ChannelID: "c3", Label: "c3"},
		{ChannelID: "c4", Label: "vAS11"},
	}, NewOptions(rosters))
}

func TestHandleFlow(t *testing.T) {
	c := New("close", NewOptions(rosters))
	assert.Contains(t, c.Prompt(), "2: vAS1")
	assert.Contains(t, c.Prompt(), "0: exit")

	state, err := c.Handle("9")
	require.NoError(t, err)
	assert.Equal(t, StateSelecting, state)
	assert.Contains(t, c.Prompt(), "not a valid choice")

	state, err = c.Handle("2")
	require.NoError(t, err)
	assert.Equal(t, StateConfirming, state)
	assert.Contains(t, c.Prompt(), "close vAS1 (c2)? (y/n)")

	state, err = c.Handle("maybe")
	require.NoError(t, err)
	assert.Equal(t, StateConfirming, state)

	state, err = c.Handle("n")
	require.NoError(t, err)
	assert.Equal(t, StateSelecting, state)
	_, ok := c.Selected()
	assert.False(t, ok)

	_, err = c.Handle("1")
	require.NoError(t, err)
	state, err = c.Handle("Y")
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	o, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "c1", o.ChannelID)

	_, err = c.Handle("1")
	assert.Error(t, err)
}

func TestHandleExit(t *testing.T) {
	c := New("fill", NewOptions(rosters))
	state, err := c.Handle("0")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, state)
	assert.True(t, state.Final())
}

func TestRun(t *testing.T) {
	inputs := make(chan string, 3)
	inputs <- "3"
	inputs <- "y"
	out := bytes.Buffer{}
	o, err := Run(context.Background(), New("close", NewOptions(rosters)), inputs, &out, DefaultTimeouts)
	require.NoError(t, err)
	assert.Equal(t, Option{ChannelID: "c3", Label: "c3"}, o)
	assert.Contains(t, out.String(), "Select a roster to close:")
}

func TestRunTimesOut(t *testing.T) {
	inputs := make(chan string)
	out := bytes.Buffer{}
	_, err := Run(context.Background(), New("close", NewOptions(rosters)), inputs, &out, Timeouts{Select: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Contains(t, out.String(), "Timed out.")
}

func TestRunCancelled(t *testing.T) {
	inputs := make(chan string)
	close(inputs)
	_, err := Run(context.Background(), New("close", NewOptions(rosters)), inputs, &bytes.Buffer{}, DefaultTimeouts)
	assert.ErrorIs(t, err, ErrCancelled)

	inputs = make(chan string, 1)
	inputs <- "0"
	_, err = Run(context.Background(), New("close", NewOptions(rosters)), inputs, &bytes.Buffer{}, DefaultTimeouts)
	assert.ErrorIs(t, err, ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, New("close", NewOptions(rosters)), make(chan string), &bytes.Buffer{}, DefaultTimeouts)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Run(context.Background(), New("close", nil), make(chan string), &bytes.Buffer{}, DefaultTimeouts)
	assert.ErrorIs(t, err, ErrNoOptions)
}
