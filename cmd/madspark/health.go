package main

import (
	"context"
	"net/http"
	"time"

	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/internal/port"
	"github.com/madspark/madspark/telemetry"
)

// startHealthServer exposes telemetry.HealthHandler on an environment-
// discovered port for the lifetime of a --serve-health run, so an operator
// (or a container orchestrator's liveness probe) can poll the workflow's
// circuit-breaker and error-rate state while a long-running refinement is
// in flight. The returned stop func shuts the server down with a short
// grace period; callers defer it.
func startHealthServer(cfg *core.Config) (stop func(), err error) {
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, "madspark-health")

	pm := port.NewPortManager(portLoggerAdapter{logger})
	p := pm.DeterminePort()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", telemetry.HealthHandler)

	srv := &http.Server{Addr: pm.GetServerAddress(p), Handler: mux}
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("health server stopped unexpectedly", map[string]interface{}{"error": serveErr.Error()})
		}
	}()
	logger.Info("health endpoint listening", map[string]interface{}{"url": pm.GetPublicURL(p) + "/healthz"})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// portLoggerAdapter bridges internal/port's variadic-fields Logger onto
// core.Logger's map-of-fields signature: the two packages were built
// independently and were never meant to share a logging interface, so
// DeterminePort's diagnostics go through this instead of a second
// standalone logger.
type portLoggerAdapter struct {
	log core.Logger
}

func (a portLoggerAdapter) Debug(msg string, fields ...interface{}) { a.log.Debug(msg, pairsToMap(fields)) }
func (a portLoggerAdapter) Info(msg string, fields ...interface{})  { a.log.Info(msg, pairsToMap(fields)) }
func (a portLoggerAdapter) Warn(msg string, fields ...interface{})  { a.log.Warn(msg, pairsToMap(fields)) }
func (a portLoggerAdapter) Error(msg string, fields ...interface{}) { a.log.Error(msg, pairsToMap(fields)) }

func pairsToMap(fields []interface{}) map[string]interface{} {
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]interface{}); ok {
			return m
		}
	}
	m := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		m[key] = fields[i+1]
	}
	return m
}

var _ port.Logger = portLoggerAdapter{}
