package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/mklimuk/envsense"
	"github.com/mklimuk/envsense/environment"
)

// Sensor is a resettable environment reader.
type Sensor interface {
	environment.Reader
	Reset(ctx context.Context, bus envsense.I2CBus) error
}

// Configurer is implemented by sensors whose measurement settings can be
// reapplied after a reset.
type Configurer interface {
	Configure(ctx context.Context, bus envsense.I2CBus) error
}

var ErrNotConfigurable = errors.New("sensor does not support reconfiguration")

// Server exposes on-demand readings over HTTP. The sensor driver holds no
// lock of its own so every bus access goes through mx.
type Server struct {
	mx     sync.Mutex
	sensor Sensor
	bus    envsense.I2CBus
	router *mux.Router
	now    func() time.Time
}

type readingResponse struct {
	environment.Reading
	Time time.Time `json:"time"`
	Env  string    `json:"env"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(sensor Sensor, bus envsense.I2CBus) *Server {
	s := &Server{
		sensor: sensor,
		bus:    bus,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.router.HandleFunc("/reading", s.handleReading).Methods(http.MethodGet)
	s.router.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		slog.Info("serving readings", "addr", addr)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	s.mx.Lock()
	reading, err := s.sensor.Read(driverContext(r), s.bus)
	s.mx.Unlock()
	if err != nil {
		slog.Error("could not read sensor", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	env := reading.Env()
	writeJSON(w, http.StatusOK, readingResponse{
		Reading: reading,
		Time:    s.now().UTC(),
		Env:     fmt.Sprintf("%s %s %s", env.Temperature, env.Pressure, env.Humidity),
	})
}

// handleReset soft-resets the sensor. With reconfigure=true the measurement
// settings are written again, otherwise the sensor stays in sleep mode.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	reconfigure := false
	if v := r.URL.Query().Get("reconfigure"); v != "" {
		var err error
		reconfigure, err = strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid reconfigure value %q", v)})
			return
		}
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	ctx := driverContext(r)
	err := s.sensor.Reset(ctx, s.bus)
	if err != nil {
		slog.Error("could not reset sensor", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	if reconfigure {
		c, ok := s.sensor.(Configurer)
		if !ok {
			writeJSON(w, http.StatusNotImplemented, errorResponse{Error: ErrNotConfigurable.Error()})
			return
		}
		err = c.Configure(ctx, s.bus)
		if err != nil {
			slog.Error("could not configure sensor", "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// driverContext keeps request values but drops cancellation: a client that
// hangs up must not leave the sensor between register writes.
func driverContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("could not encode response", "error", err)
	}
}
