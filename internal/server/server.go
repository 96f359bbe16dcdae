// Package server wires the ingest pipeline, asset cache, and
// recording playback into one chi-routed HTTP/WebSocket listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/ingest"
	"github.com/dnorman/domcorder/pkg/middleware"
	"github.com/dnorman/domcorder/pkg/protocol"
	"github.com/dnorman/domcorder/pkg/recording"
	"github.com/dnorman/domcorder/pkg/transport"
)

// Deps are the components the server routes requests to. All fields
// are required except Log, which defaults to slog.Default().
type Deps struct {
	Store     *recording.SessionStore
	Active    *recording.ActiveRecordings
	Cache     *assetcache.Cache
	Fetcher   *assetcache.Fetcher
	MaxBytes  int64
	UserAgent string
	Log       *slog.Logger
}

// Server is the recording server's HTTP/WebSocket listener.
type Server struct {
	deps     Deps
	pipeline *ingest.Pipeline
	handler  *assetcache.Handler
	upgrader websocket.Upgrader
	log      *slog.Logger

	httpServer *http.Server
}

// New builds a Server ready to Run.
func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Server{
		deps:     deps,
		pipeline: ingest.NewPipeline(deps.Store, deps.Active, deps.Cache, deps.Fetcher, deps.MaxBytes, deps.Log),
		handler:  assetcache.NewHandler(deps.Cache, deps.Log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: deps.Log,
	}
}

// Router builds the chi router: asset serving, recording playback,
// WebSocket ingest, and a health check.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.OpenTelemetry())
	r.Use(middleware.Prometheus())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.handler.Mount(r)

	r.Get("/recordings", s.handleListRecordings)
	r.Get("/recordings/{filename}/stream", s.handleStreamRecording)
	r.Get("/record", s.handleIngest)

	return r
}

// handleIngest upgrades to a WebSocket and drives the ingest pipeline
// for exactly one recording session for the lifetime of the
// connection.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	src := transport.NewWSSource(conn)
	sink := transport.NewWSSink(conn)

	userAgent := s.deps.UserAgent
	if ua := r.Header.Get("User-Agent"); ua != "" {
		userAgent = ua
	}

	if err := s.pipeline.Run(r.Context(), src, sink, userAgent); err != nil {
		s.log.Warn("ingest session ended with error", "error", err, "remote", r.RemoteAddr)
	}
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	infos, err := s.deps.Store.List()
	if err != nil {
		http.Error(w, "list recordings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	type entry struct {
		Filename  string    `json:"filename"`
		Size      int64     `json:"size"`
		CreatedAt time.Time `json:"created_at"`
		Active    bool      `json:"active"`
	}
	out := make([]entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, entry{
			Filename:  info.Filename,
			Size:      info.Size,
			CreatedAt: info.CreatedAt,
			Active:    s.deps.Active.Contains(info.Filename),
		})
	}
	writeJSON(w, out)
}

// handleStreamRecording streams a recording's raw frame bytes (past
// the file header), tailing the file live if it is still active.
func (s *Server) handleStreamRecording(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !s.deps.Store.Exists(filename) {
		http.NotFound(w, r)
		return
	}

	file, err := s.deps.Store.Open(filename)
	if err != nil {
		http.Error(w, "open recording: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	if _, err := file.Seek(protocol.HeaderSize, io.SeekStart); err != nil {
		http.Error(w, "seek past header: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	configJSON, err := s.deps.Cache.Files.ConfigJSON()
	if err != nil {
		s.log.Warn("stream recording config_json failed", "filename", filename, "error", err)
		configJSON = "{}"
	}
	playbackConfig := &protocol.PlaybackConfigFrame{
		StorageType: s.deps.Cache.Files.StorageType(),
		ConfigJSON:  configJSON,
		IsLive:      s.deps.Active.Contains(filename),
	}
	if err := protocol.WriteWireFrame(w, playbackConfig); err != nil {
		s.log.Warn("stream recording playback config write failed", "filename", filename, "error", err)
		return
	}
	if flusher != nil {
		flusher.Flush()
	}

	tail := recording.NewTailingReader(file, filename, s.deps.Active)
	defer tail.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := tail.Read(r.Context(), buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("stream recording ended with error", "filename", filename, "error", err)
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Run starts the HTTP listener on addr and blocks until it exits via
// error or a SIGINT/SIGTERM shutdown.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "address", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-shutdown:
		s.log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}
