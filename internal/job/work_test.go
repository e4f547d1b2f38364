package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"evloop/internal/sched"
)

func TestSimulateIODelivers(t *testing.T) {
	s := sched.New(sched.Load(""))

	var ran bool
	delivered := SimulateIO(s.IntakeSender(), time.Millisecond, func() { ran = true })

	<-delivered
	s.RunUntilIdle()
	require.True(t, ran)
}

func TestFanInDeliversAll(t *testing.T) {
	s := sched.New(sched.Load(""))

	var n int
	bump := func() { n++ }
	all := FanIn(s.IntakeSender(), time.Millisecond, bump, bump, bump)

	<-all
	s.RunUntilIdle()
	require.Equal(t, 3, n)
}
