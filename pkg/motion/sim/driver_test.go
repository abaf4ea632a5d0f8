package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/motion"
)

func TestStep(t *testing.T) {
	d := New(0, 0)
	taken, err := d.Step(context.Background(), motion.Forward, 500)
	require.NoError(t, err)
	require.Equal(t, uint32(500), taken)
	taken, err = d.Step(context.Background(), motion.Reverse, 200)
	require.NoError(t, err)
	require.Equal(t, uint32(200), taken)
	require.Equal(t, int64(300), d.Position())
	require.Equal(t, []Call{{motion.Forward, 500}, {motion.Reverse, 200}}, d.Calls())
}

func TestStepCancel(t *testing.T) {
	d := New(time.Millisecond, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	taken, err := d.Step(ctx, motion.Forward, 100000)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, taken, uint32(100000))
	require.Equal(t, int64(taken), d.Position())
}

func TestStall(t *testing.T) {
	d := New(0, 0)
	d.Stall(true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	taken, err := d.Step(ctx, motion.Forward, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, taken)
	require.Zero(t, d.Position())
}

func TestSenseHome(t *testing.T) {
	d := New(0, 0)
	d.SetPosition(30)
	home, err := d.SenseHome(context.Background())
	require.NoError(t, err)
	require.False(t, home)
	_, err = d.Step(context.Background(), motion.Reverse, 30)
	require.NoError(t, err)
	home, err = d.SenseHome(context.Background())
	require.NoError(t, err)
	require.True(t, home)
	d.DisconnectHome(true)
	home, err = d.SenseHome(context.Background())
	require.NoError(t, err)
	require.False(t, home)
}
