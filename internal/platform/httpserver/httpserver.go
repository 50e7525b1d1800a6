package httpserver

import (
	"context"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful drain on shutdown. Long enough for an
// in-flight backend execution to finish and be audited, short enough
// that supervisors do not SIGKILL us first.
const ShutdownTimeout = 10 * time.Second

// New builds the governance API server. The read-header timeout keeps
// slow clients from pinning connections open before auth runs.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown drains srv under ShutdownTimeout.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
