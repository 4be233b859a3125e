package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPruner_Interval(t *testing.T) {
	require.Equal(t, 6*time.Minute, NewPruner(time.Hour, nil).Interval())
	require.Equal(t, time.Minute, NewPruner(time.Minute, nil).Interval())
	require.Equal(t, time.Hour, NewPruner(48*time.Hour, nil).Interval())
	require.Zero(t, NewPruner(-1, nil).Interval())
}

func TestPruner_PruneSumsTargets(t *testing.T) {
	var calls []string
	p := NewPruner(time.Hour, nil,
		Target{Name: "cache", Prune: func() int { calls = append(calls, "cache"); return 2 }},
		Target{Name: "queue", Prune: func() int { calls = append(calls, "queue"); return 0 }},
	)
	require.Equal(t, 2, p.Prune())
	require.Equal(t, []string{"cache", "queue"}, calls)
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	p := NewPruner(0, nil, Target{Name: "x", Prune: func() int { t.Fatal("unexpected prune"); return 0 }})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
}
