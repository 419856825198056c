// Package http serves the GraphQL surface of a store with a playground.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nasdf/capydoc"

	"github.com/99designs/gqlgen/graphql/playground"
	"go.uber.org/zap"
)

// QueryPath is the path GraphQL operations are served on.
const QueryPath = "/query"

// NewServeMux returns a mux serving the playground on / and operations on QueryPath.
func NewServeMux(db *capydoc.DB) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", playground.Handler("Capydoc", QueryPath))
	mux.Handle(QueryPath, db.Handler())
	return mux
}

// ListenAndServe starts an http server bound to the given address and shuts
// it down when the context is done.
func ListenAndServe(ctx context.Context, db *capydoc.DB, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewServeMux(db),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		db.Logger().Info("listening", zap.String("addr", addr))
		errc <- server.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
