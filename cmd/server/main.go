package main

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/metachess-backend/internal/config"
	"github.com/DoyleJ11/metachess-backend/internal/httpapi"
	"github.com/DoyleJ11/metachess-backend/internal/registry"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	reg := registry.New(ctx, cfg.Timing(), rules.NewOracle(), clockwork.NewRealClock(), sugar, rng)

	handler := httpapi.SetupRoutes(reg, sugar)

	sugar.Infow("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		sugar.Fatalw("server exited", "err", err)
	}
}
