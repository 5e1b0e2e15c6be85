package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	httpapi "velha-online/internal/api/http"
	"velha-online/internal/api/ws"
	"velha-online/internal/config"
	"velha-online/internal/store"

	// swagger registration
	_ "velha-online/docs"
)

// @title Velha Online API
// @version 1.0
// @description Realtime two-player tic-tac-toe rooms (Go + Gin + WebSocket)
// @BasePath /
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	hub := ws.NewHub(st, cfg.CodeLen)
	r := httpapi.NewRouter(st, hub)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	log.Printf("listening on %s (store: %s)", cfg.HTTPAddr, cfg.StoreBackend)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return store.OpenGorm(cfg.SQLitePath)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisStore(client), nil
	default:
		return store.NewMemoryStore(), nil
	}
}
