package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/httpapi"
	"incidentdesk.org/internal/incident"
	"incidentdesk.org/internal/obs"
	"incidentdesk.org/internal/session"
	"incidentdesk.org/internal/store/memory"
	"incidentdesk.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Without a DSN the service runs fully in memory (dev mode).
	var (
		db            *sql.DB
		directoryStor directory.Store
		incidentStor  incident.Store
		auditStor     audit.Store
		tokenStor     session.TokenStore
	)
	if dsn := os.Getenv("IDESK_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		directoryStor = store
		incidentStor = store
		auditStor = store
		tokenStor = store
	} else {
		log.Print("IDESK_PG_DSN not set; using in-memory store")
		store := memory.New()
		directoryStor = store
		incidentStor = store
		auditStor = store
		tokenStor = store
	}

	recorder := audit.NewRecorder(auditStor)

	users, err := directory.NewService(directoryStor, recorder)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}
	incidents, err := incident.NewService(incidentStor, recorder)
	if err != nil {
		log.Fatalf("incident service: %v", err)
	}
	sessions, err := session.NewService(users, tokenStor, recorder)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	auditlog := audit.NewService(auditStor)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, incidents, users, auditlog)

	addr := os.Getenv("IDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting incidentdesk-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
