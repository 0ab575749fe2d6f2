package contracts

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// PublicRouter is implemented by handlers that expose routes reachable without an actor.
type PublicRouter interface {
	IsPublic(r *http.Request) bool
}

// Worker is a long running background loop bound to the application lifetime.
// Run returns when ctx is cancelled.
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}
