package deferredshading

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Hengle/DeferredShading/dsrt/rt/telemetry"
)

// TelemetryModule serves per-frame stats over a websocket at /ws. Clients
// may send {"resolution_scale": x} or {"debug": bool}; both are queued with
// UpdateConfig and applied on the frame thread.
type TelemetryModule struct {
	// Every broadcasts once per this many frames; 0 means every frame.
	Every uint64
}

func (m TelemetryModule) Install(app *App) error {
	cfg := app.config.Telemetry
	if !cfg.Enabled {
		return nil
	}
	hub := telemetry.NewHub(app.Logger())
	hub.OnMessage = func(msg map[string]any) { app.applyRemote(msg) }

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("telemetry listen %s: %w", cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger().Errorf("telemetry: %v", err)
		}
	}()
	app.Logger().Infof("telemetry on ws://%s/ws", ln.Addr())

	every := max(1, m.Every)
	app.OnFrame(func(app *App) {
		if app.frame%every == 0 {
			hub.Broadcast(app.profiler.Snapshot(app.frame))
		}
	})
	app.OnClose(func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return nil
}

// applyRemote turns a telemetry client message into a queued config patch.
func (app *App) applyRemote(msg map[string]any) {
	scale, hasScale := msg["resolution_scale"].(float64)
	debug, hasDebug := msg["debug"].(bool)
	if !hasScale && !hasDebug {
		return
	}
	app.UpdateConfig(func(cfg *Config) {
		if hasScale {
			cfg.Renderer.ResolutionScale = float32(scale)
		}
		if hasDebug {
			cfg.Log.Debug = debug
		}
	})
}
