package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scrimtime/schedbot/src/schedbot/bot"
	"github.com/scrimtime/schedbot/src/schedbot/config"
	"github.com/scrimtime/schedbot/src/schedbot/data"
	"github.com/scrimtime/schedbot/src/schedbot/webserver"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = data.MustRedis(cfg.RedisURL)
	}

	b, err := bot.New(bot.Config{
		Token:      cfg.Token,
		GuildID:    cfg.GuildID,
		RoleGroups: cfg.RoleGroups,
		DB:         db,
		Redis:      rdb,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	var httpSrv *http.Server
	if cfg.OpsPort != "" {
		router := webserver.New(cfg.OpsToken, func() webserver.Status {
			return webserver.Status{
				Registry: b.RegistryStats(),
				Poller:   b.PollerStats(),
				Cursors:  b.CursorCount(),
			}
		})
		httpSrv = &http.Server{
			Addr:         ":" + cfg.OpsPort,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Printf("Starting ops server on port %s", cfg.OpsPort)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("http: %v", err)
			}
		}()
	}

	log.Println("schedbot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		cancel()
	}

	b.Stop()
	log.Println("schedbot stopped gracefully")
}
