package runner

import (
	"sync"

	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

// UpdateKind tags the SimulationUpdate variant carried on the broadcast
// channel.
type UpdateKind int

const (
	UpdateTick UpdateKind = iota
	UpdateSpeedChanged
	UpdateStarted
	UpdateStopped
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTick:
		return "Tick"
	case UpdateSpeedChanged:
		return "SpeedChanged"
	case UpdateStarted:
		return "Started"
	case UpdateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Update is one broadcast message. Snapshot and Events are only set for
// UpdateTick; Speed only for UpdateSpeedChanged.
type Update struct {
	Kind     UpdateKind
	Time     simtime.Time
	Snapshot *world.WorldSnapshot
	Events   []simevent.Event
	Speed    Speed
}

const subscriberBuffer = 1024

// broadcaster is the multi-consumer channel behind Subscribe. Sends never
// block: a subscriber whose buffer is full simply misses the message, so
// observers degrade rather than stall the runner.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Update]struct{})}
}

func (b *broadcaster) subscribe() chan Update {
	ch := make(chan Update, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	return ch
}

func (b *broadcaster) unsubscribe(ch <-chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub == ch {
			delete(b.subs, sub)
			close(sub)
			return
		}
	}
}

func (b *broadcaster) send(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
