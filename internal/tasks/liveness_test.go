package tasks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"groupchat/internal/models"
	"groupchat/internal/presence"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPinger struct{ n atomic.Int32 }

func (p *countingPinger) PingAll() { p.n.Add(1) }

type releasingEvictor struct {
	mu      sync.Mutex
	reg     *presence.Registry
	evicted []string
}

func (e *releasingEvictor) Evict(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.Leave(connID)
	e.evicted = append(e.evicted, connID)
}

func TestSweep_EvictsOncePerEpisode(t *testing.T) {
	reg := presence.NewRegistry(models.DefaultRoster())
	_, ok := reg.Join("2", "Global", "conn-a")
	require.True(t, ok)
	_, ok = reg.Join("3", "Global", "conn-b")
	require.True(t, ok)

	ev := &releasingEvictor{reg: reg}
	m := NewLivenessMonitor(&countingPinger{}, reg, ev, LivenessOptions{InactivityLimit: 30 * time.Second}, zerolog.Nop())

	assert.Zero(t, m.Sweep(time.Now().Add(10*time.Second)), "nobody is stale yet")

	later := time.Now().Add(time.Minute)
	assert.Equal(t, 2, m.Sweep(later))
	assert.Zero(t, m.Sweep(later), "evicted connections are not evicted again")
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, ev.evicted)
	assert.Zero(t, reg.OnlineCount())
}

func TestSweep_TouchKeepsAlive(t *testing.T) {
	reg := presence.NewRegistry(models.DefaultRoster())
	reg.Join("2", "Global", "conn-a")
	reg.Join("3", "Global", "conn-b")

	ev := &releasingEvictor{reg: reg}
	m := NewLivenessMonitor(&countingPinger{}, reg, ev, LivenessOptions{InactivityLimit: time.Second}, zerolog.Nop())

	time.Sleep(100 * time.Millisecond)
	require.True(t, reg.Touch("conn-b"))

	assert.Equal(t, 1, m.Sweep(time.Now().Add(950*time.Millisecond)))
	assert.Equal(t, []string{"conn-a"}, ev.evicted)
}

func TestLivenessMonitor_SchedulesPings(t *testing.T) {
	reg := presence.NewRegistry(models.DefaultRoster())
	p := &countingPinger{}
	m := NewLivenessMonitor(p, reg, &releasingEvictor{reg: reg}, LivenessOptions{PingInterval: time.Second}, zerolog.Nop())

	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Eventually(t, func() bool { return p.n.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestNewLivenessMonitor_Defaults(t *testing.T) {
	reg := presence.NewRegistry(nil)
	m := NewLivenessMonitor(&countingPinger{}, reg, &releasingEvictor{reg: reg}, LivenessOptions{}, zerolog.Nop())

	assert.Equal(t, DefaultPingInterval, m.opts.PingInterval)
	assert.Equal(t, DefaultSweepInterval, m.opts.SweepInterval)
	assert.Equal(t, DefaultInactivityLimit, m.opts.InactivityLimit)
	assert.Equal(t, "@every 3s", every(m.opts.PingInterval))
}
