package fileserver

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/pfs-project/pfs/persist"
)

// Server runs one file service's HTTP control surface against a local
// chunk directory.
type Server struct {
	storage    *Storage
	api        *API
	log        *persist.Logger
	httpServer *http.Server
	listener   net.Listener
}

// NewServer returns a Server for server index serverIndex, storing
// chunks under dir and listening on addr.
func NewServer(addr string, serverIndex int, dir string, log *persist.Logger) (*Server, error) {
	storage, err := NewStorage(serverIndex, dir)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	api := NewAPI(storage)
	return &Server{
		storage:    storage,
		api:        api,
		log:        log,
		httpServer: &http.Server{Handler: api.Handler},
		listener:   l,
	}, nil
}

// Addr returns the address this file service is listening on, which may
// differ from the address passed to NewServer if it ended in ":0".
func (srv *Server) Addr() string {
	return srv.listener.Addr().String()
}

// Serve blocks, handling chunk RPCs until Close is called or a signal
// arrives.
func (srv *Server) Serve() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		if srv.log != nil {
			srv.log.Println("caught stop signal, shutting down")
		}
		srv.Close()
	}()

	err := srv.httpServer.Serve(srv.listener)
	if err != nil && strings.HasSuffix(err.Error(), "use of closed network connection") {
		return nil
	}
	return err
}

// Close shuts down the listener.
func (srv *Server) Close() error {
	return srv.listener.Close()
}
