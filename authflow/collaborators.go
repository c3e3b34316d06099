package authflow

import (
	"context"
	"net/url"
)

// CallbackAcceptor delivers the query parameters of the next callback to a
// registered handler. A handler fires at most once; cancel unregisters it
// and is safe to call more than once.
type CallbackAcceptor interface {
	RegisterOnce(handler func(params url.Values)) (cancel func())
}

// BrowserOpener sends the user to rawURL, typically in an external browser.
type BrowserOpener interface {
	Open(ctx context.Context, rawURL string) error
}

// URIResolver computes the externally reachable callback URI that the login
// page redirects back to.
type URIResolver interface {
	CallbackURI(ctx context.Context) (string, error)
}
