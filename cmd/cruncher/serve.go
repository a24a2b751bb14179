package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/petersaints/YanuX-Cruncher/internal/db"
	"github.com/petersaints/YanuX-Cruncher/internal/httputil"
	"github.com/petersaints/YanuX-Cruncher/internal/report"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	path := fs.String("db", "cruncher.db", "SQLite results database")
	listen := fs.String("listen", ":8080", "Listen address")
	fs.Parse(args)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	database, err := db.NewDB(*path)
	if err != nil {
		log.Fatalf("failed to open results database: %v", err)
	}
	defer database.Close()

	mux, err := newServeMux(database)
	if err != nil {
		log.Fatalf("failed to set up routes: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr: *listen,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		}),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	log.Printf("serving %s on %s", *path, *listen)

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}

// newServeMux exposes stored runs as JSON, a metrics chart per run and the
// database admin routes.
func newServeMux(database *db.DB) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}

	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				httputil.BadRequest(w, "limit must be a positive integer")
				return
			}
			limit = n
		}
		runs, err := database.Runs(limit)
		if err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		httputil.WriteJSONOK(w, runs)
	})

	mux.HandleFunc("GET /api/runs/{id}/summaries", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			httputil.BadRequest(w, "invalid run id")
			return
		}
		summaries, err := database.Summaries(id)
		if err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		// NaN has no JSON encoding; undefined metrics become null.
		type metric struct {
			Name  string   `json:"name"`
			Value *float64 `json:"value"`
		}
		type scenarioSummary struct {
			Scenario string   `json:"scenario"`
			Metrics  []metric `json:"metrics"`
		}
		out := make([]scenarioSummary, 0, len(summaries))
		for _, s := range summaries {
			ss := scenarioSummary{Scenario: s.Scenario}
			for _, m := range s.Summary {
				var v *float64
				if !math.IsNaN(m.Value) {
					v = &m.Value
				}
				ss.Metrics = append(ss.Metrics, metric{Name: m.Name, Value: v})
			}
			out = append(out, ss)
		}
		httputil.WriteJSONOK(w, out)
	})

	mux.HandleFunc("GET /runs/{id}/chart", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			httputil.BadRequest(w, "invalid run id")
			return
		}
		summaries, err := database.Summaries(id)
		if err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		if len(summaries) == 0 {
			httputil.NotFound(w, "no summaries for run "+id.String())
			return
		}
		var buf bytes.Buffer
		if err := report.RenderMetricsChart(&buf, summaries, nil); err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	})

	return mux, nil
}
