package metaserver

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/NebulousLabs/threadgroup"

	"github.com/pfs-project/pfs/build"
	"github.com/pfs-project/pfs/persist"
)

// Server bundles the Registry, its HTTP control surface, and the
// TokenStream listener into the one long-running process a cmd/
// entry point starts.
type Server struct {
	registry *Registry
	api      *API
	log      *persist.Logger
	tg       threadgroup.ThreadGroup

	httpServer   *http.Server
	httpListener net.Listener

	streamListener net.Listener
	streams        *streamManager
}

// NewServer constructs a Server listening for unary RPCs on httpAddr and
// TokenStream connections on streamAddr. fileAddrs names the file
// services in the deployment (their count bounds stripe width; their
// addresses let Delete fan chunk destruction out to each of them), and
// chunkSize configures the Registry's striping math.
func NewServer(httpAddr, streamAddr string, fileAddrs []string, chunkSize uint64, log *persist.Logger) (*Server, error) {
	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, err
	}
	streamListener, err := net.Listen("tcp", streamAddr)
	if err != nil {
		httpListener.Close()
		return nil, err
	}

	registry := NewRegistry(len(fileAddrs), chunkSize, build.Select(build.Var{
		Standard: 30 * time.Second,
		Dev:      30 * time.Second,
		Testing:  time.Second,
	}).(time.Duration), log)

	srv := &Server{
		registry:       registry,
		api:            NewAPI(registry, fileAddrs),
		log:            log,
		httpListener:   httpListener,
		streamListener: streamListener,
	}
	srv.streams = newStreamManager(registry, log, &srv.tg)
	srv.httpServer = &http.Server{Handler: srv.api.Handler}
	return srv, nil
}

// Addr returns the address the unary control surface is listening on,
// which may differ from the address passed to NewServer if it ended in
// ":0".
func (srv *Server) Addr() string {
	return srv.httpListener.Addr().String()
}

// StreamAddr returns the address the TokenStream is listening on.
func (srv *Server) StreamAddr() string {
	return srv.streamListener.Addr().String()
}

// Serve runs both listeners until an error occurs or Close is called. It
// is a blocking call; callers typically run it in its own goroutine.
func (srv *Server) Serve() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		srv.log.Println("caught stop signal, shutting down")
		srv.Close()
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.streams.Serve(srv.streamListener)
	}()
	go func() {
		err := srv.httpServer.Serve(srv.httpListener)
		if err != nil && strings.HasSuffix(err.Error(), "use of closed network connection") {
			err = nil
		}
		errCh <- err
	}()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close shuts down both listeners, then waits for every in-flight
// TokenStream handler goroutine to exit via the thread group.
func (srv *Server) Close() error {
	streamErr := srv.streamListener.Close()
	httpErr := srv.httpListener.Close()
	tgErr := srv.tg.Stop()
	if httpErr != nil {
		return httpErr
	}
	if streamErr != nil {
		return streamErr
	}
	return tgErr
}
