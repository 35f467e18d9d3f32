package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"autoapply-backend/internal/shared/server"
	"autoapply-backend/internal/shared/telemetry"
)

const shutdownTimeout = 20 * time.Second

// Serve runs the HTTP server and the scheduler until ctx is cancelled, then
// shuts both down. The app must have been built with a router.
func (a *App) Serve(ctx context.Context) error {
	if a.Router == nil {
		return errors.New("serve requires a router")
	}
	srv := server.NewHTTPServer(a.Config, a.Router)

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("server.listen", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Warn("server.shutdown.failed", map[string]any{"error": err})
	}
	telemetry.Info("server.stopped", nil)

	if serveErr != nil {
		return errors.Wrap(serveErr, "http server")
	}
	return nil
}
