package debug

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	_ "net/http/pprof"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server is the sidecar debug endpoint: metrics, probes, pprof and a live
// tail of the controller diagnostic stream over a websocket.
type Server struct {
	srv     *http.Server
	isReady *atomic.Value

	upgrader websocket.Upgrader

	mutex sync.Mutex
	conns map[*websocket.Conn]bool
}

func StartDebugServer(wg *sync.WaitGroup) *Server {
	isReady := &atomic.Value{}
	isReady.Store(false)

	server := &Server{
		srv:      &http.Server{Addr: ":6060"},
		isReady:  isReady,
		upgrader: websocket.Upgrader{},
		conns:    map[*websocket.Conn]bool{},
	}

	// Add profiling server for live profile of the program.
	http.Handle("/metrics", promhttp.Handler())
	// Readines and liveness endpoints.
	http.HandleFunc("/healthz", healthz)
	http.HandleFunc("/readyz", readyz(isReady))
	// Live tail of the raw diagnostic lines.
	http.HandleFunc("/diagnostics", server.diagnosticsTail)
	// pprof endpoints are added through the import.

	go func() {
		defer wg.Done() // Let main know we are done cleaning up

		if err := server.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Error on sidecar server for debugging")
		}
	}()

	return server
}

func (s *Server) SetReady() {
	s.isReady.Store(true)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = map[*websocket.Conn]bool{}
	s.mutex.Unlock()
	return s.srv.Shutdown(ctx)
}

// BroadcastLine pushes one diagnostic line to every connected tail. Slow or
// broken connections are dropped rather than blocking the stream.
func (s *Server) BroadcastLine(line string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

func (s *Server) diagnosticsTail(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error upgrading diagnostics tail connection")
		return
	}
	s.mutex.Lock()
	s.conns[conn] = true
	s.mutex.Unlock()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Diagnostics tail connected")

	// Drain reads so that close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mutex.Lock()
				delete(s.conns, conn)
				s.mutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// healthz is a liveness probe.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// readyz is a readiness probe.
func readyz(isReady *atomic.Value) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if isReady == nil || !isReady.Load().(bool) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
