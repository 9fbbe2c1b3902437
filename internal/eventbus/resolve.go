package eventbus

import "log"

// Resolve picks the bus implementation once at startup: NATS when a URL is
// configured and reachable, otherwise the in-process bus. Like the session
// store selection, the downgrade is logged and never re-evaluated per call.
func Resolve(natsURL string) Bus {
	if natsURL == "" {
		log.Println("NATS_URL not set, using in-process event bus")
		return NewLocalBus()
	}

	bus, err := NewDistributedBus(natsURL)
	if err != nil {
		log.Printf("NATS unreachable, downgrading to in-process event bus: %v", err)
		return NewLocalBus()
	}

	return bus
}
