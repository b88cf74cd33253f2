package main

import (
	"github.com/rlaxodn322/social-chatting-study/internal/config"
	"github.com/rlaxodn322/social-chatting-study/internal/db"
	clog "github.com/rlaxodn322/social-chatting-study/internal/log"
	"github.com/rlaxodn322/social-chatting-study/internal/server"
	"github.com/rlaxodn322/social-chatting-study/internal/store"
	"github.com/rlaxodn322/social-chatting-study/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	st := store.New(gdb)
	registry := ws.NewRegistry(cfg.AllowOpenDirectRooms)
	router := ws.NewRouter(registry)
	pipeline := ws.NewPipeline(st, router)
	if cfg.AllowOpenDirectRooms {
		log.Warn().Msg("open direct rooms enabled: any connection may join any inbox room")
	}

	r := server.SetupRouter(cfg, gdb, st, registry, pipeline)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
