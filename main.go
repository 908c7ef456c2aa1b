package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatalf("tuning: %v", err)
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db %s: %v", cfg.DBPath, err)
	}
	defer db.Close()

	chat := NewChatLog(db)
	rink := NewRink(tuning, chat)
	go rink.Run()

	hub := NewHub(db, rink, chat)
	go hub.Run()

	mux := SetupRoutes(hub, cfg)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		log.Printf("Serving client files from %s", cfg.ClientDir)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
		server.Close()
	}
	rink.Stop()
	chat.Stop()
}
