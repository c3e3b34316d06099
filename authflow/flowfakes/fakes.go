package flowfakes

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

var ErrInjected = errors.New("injected failure")

// FakeAcceptor is a one-shot CallbackAcceptor driven by Deliver.
type FakeAcceptor struct {
	mu            sync.Mutex
	handler       func(url.Values)
	generation    int
	registrations int
	cancels       int
	registered    chan struct{}
}

func NewFakeAcceptor() *FakeAcceptor {
	return &FakeAcceptor{registered: make(chan struct{}, 16)}
}

func (f *FakeAcceptor) RegisterOnce(handler func(url.Values)) func() {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.handler = handler
	f.registrations++
	f.mu.Unlock()

	select {
	case f.registered <- struct{}{}:
	default:
	}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancels++
		if f.generation == gen {
			f.handler = nil
		}
	}
}

// Deliver hands params to the registered handler and consumes it. It reports
// false when no handler is registered.
func (f *FakeAcceptor) Deliver(params url.Values) bool {
	f.mu.Lock()
	handler := f.handler
	f.handler = nil
	f.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(params)
	return true
}

// Registered is signalled every time a handler is registered
func (f *FakeAcceptor) Registered() <-chan struct{} {
	return f.registered
}

func (f *FakeAcceptor) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func (f *FakeAcceptor) Registrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registrations
}

func (f *FakeAcceptor) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// FakeOpener records opened URLs. OnOpen, when set, runs synchronously
// inside Open, which lets a test answer the login page immediately.
type FakeOpener struct {
	mu     sync.Mutex
	urls   []string
	Err    error
	OnOpen func(rawURL string)
}

func (f *FakeOpener) Open(_ context.Context, rawURL string) error {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	err := f.Err
	onOpen := f.OnOpen
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if onOpen != nil {
		onOpen(rawURL)
	}
	return nil
}

func (f *FakeOpener) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// FakeResolver returns a fixed callback URI
type FakeResolver struct {
	URI string
	Err error
}

func (f *FakeResolver) CallbackURI(context.Context) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.URI, nil
}
