package metrics

import (
	"time"

	"github.com/san-kum/simbridge/internal/wire"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) TickCompleted(time.Duration, wire.StatusCode)      {}
func (nc *NoopCollector) ResetCompleted(int, time.Duration, wire.StatusCode) {}
func (nc *NoopCollector) DatagramDropped(string)                            {}
