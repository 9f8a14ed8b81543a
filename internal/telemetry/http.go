// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const pngScale = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network diagnostics
	},
}

// Handler serves the latest reports:
//
//	/api/attitude   latest estimator diagnostics (JSON)
//	/api/frame      latest frame, rows and text grid (JSON)
//	/api/frame.png  latest frame as an image (?scale=N)
//	/ws             live stream of every report
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/attitude", func(w http.ResponseWriter, r *http.Request) {
		a, ok := h.Attitude()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, a)
	})

	mux.HandleFunc("/api/frame", func(w http.ResponseWriter, r *http.Request) {
		f, ok := h.Frame()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, struct {
			Frame
			Grid []string `json:"grid"`
		}{f, f.Grid()})
	})

	mux.HandleFunc("/api/frame.png", func(w http.ResponseWriter, r *http.Request) {
		f, ok := h.Frame()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		scale := pngScale
		if s := r.URL.Query().Get("scale"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 128 {
				http.Error(w, "bad scale", http.StatusBadRequest)
				return
			}
			scale = n
		}
		w.Header().Set("Content-Type", "image/png")
		if err := f.WritePNG(w, scale); err != nil {
			glog.Warningf("telemetry: png encode error: %v", err)
		}
	})

	mux.HandleFunc("/ws", h.serveWS)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("telemetry: json encode error: %v", err)
	}
}

// serveWS sends the current snapshot, then every new report, until the
// client goes away.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("telemetry: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	reports, cancel := h.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					glog.Warningf("telemetry: websocket error: %v", err)
				}
				return
			}
		}
	}()

	if a, ok := h.Attitude(); ok {
		if err := conn.WriteJSON(AttitudeReport(a)); err != nil {
			return
		}
	}
	if f, ok := h.Frame(); ok {
		if err := conn.WriteJSON(Report{Frame: &f}); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case rep, ok := <-reports:
			if !ok {
				return
			}
			if err := conn.WriteJSON(rep); err != nil {
				return
			}
		}
	}
}

// Serve runs an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	glog.Infof("telemetry: web server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
