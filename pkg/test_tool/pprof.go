package testtool

import (
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"tour_chat_service/pkg/config"
	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof serve pprof on addr outside production, empty addr disables it
//
//	curl http://localhost:6060/debug/pprof/
//	go tool pprof http://localhost:6060/debug/pprof/goroutine
func StartPprof(addr string) {
	if addr == "" {
		return
	}
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("pprof server failed", zap.Error(err))
		}
	}()
}
