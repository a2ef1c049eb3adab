// README: Process-wide payment gateway endpoint, replaced by /api/initialize.
package payment

import "sync"

type Endpoint struct {
	mu  sync.RWMutex
	url string
}

func NewEndpoint(url string) *Endpoint {
	return &Endpoint{url: url}
}

func (e *Endpoint) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

func (e *Endpoint) Set(url string) {
	e.mu.Lock()
	e.url = url
	e.mu.Unlock()
}
