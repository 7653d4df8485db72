package sim

import (
	"sync"

	"github.com/rs/zerolog"
)

// publisher delivers the samples of one topic on its own goroutine, in the
// order they were published. Delivery order across topics is unconstrained.
type publisher struct {
	topic   string
	ch      chan func()
	pending *sync.WaitGroup
	done    chan struct{}
}

func newPublisher(topic string, depth int, pending *sync.WaitGroup, log zerolog.Logger) *publisher {
	p := &publisher{
		topic:   topic,
		ch:      make(chan func(), depth),
		pending: pending,
		done:    make(chan struct{}),
	}
	go p.run(log.With().Str("topic", topic).Logger())
	return p
}

func (p *publisher) run(log zerolog.Logger) {
	defer close(p.done)
	log.Debug().Msg("publisher started")
	for deliver := range p.ch {
		deliver()
		p.pending.Done()
	}
	log.Debug().Msg("publisher stopped")
}

func (p *publisher) publish(deliver func()) {
	p.pending.Add(1)
	p.ch <- deliver
}

func (p *publisher) close() {
	close(p.ch)
	<-p.done
}
