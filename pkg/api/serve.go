package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
)

//ShutdownTimeout bounds how long running requests may take once the server stops
var ShutdownTimeout = 10 * time.Second

//Serve runs handler on addr until ctx is done, then stops accepting requests, lets running ones finish and calls drain
//(may be nil) before returning. A listen error is returned right away without calling drain.
func Serve(ctx context.Context, addr string, handler http.Handler, drain func()) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errC := make(chan error, 1)
	go func() {
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("api", "shutting down, waiting for running requests and jobs")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	if drain != nil {
		drain()
	}
	return err
}
