package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
)

func main() {
	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		prefix   = flag.String("prefix", "catdog.events", "Event subject prefix")
		httpAddr = flag.String("http", ":5780", "HTTP server address")
		cliMode  = flag.Bool("cli", false, "Run in CLI dashboard mode")
		onceMode = flag.Bool("once", false, "Query health once and exit")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	conn, err := nats.Connect(*natsURL, nats.Name("catdog-monitor"))
	if err != nil {
		slog.Error("Failed to connect to NATS", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	monitor := NewMonitor(conn, *prefix)

	if *onceMode {
		hb, rtt, err := monitor.QueryHealth()
		if err != nil {
			fmt.Println("No classifier service answered:", err)
			os.Exit(1)
		}
		fmt.Printf("%s  status=%s  model_loaded=%t  version=%s  rtt=%v\n",
			hb.Endpoint, hb.Status, hb.ModelLoaded, hb.Version, rtt.Truncate(time.Millisecond))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		slog.Error("Failed to start monitor", "error", err)
		os.Exit(1)
	}
	go func() {
		if _, _, err := monitor.QueryHealth(); err != nil {
			slog.Info("No instance answered the initial health check", "error", err)
		}
	}()

	if *cliMode {
		runCLIDashboard(ctx, monitor)
		return
	}
	runHTTPServer(ctx, monitor, *httpAddr)
}

func runCLIDashboard(ctx context.Context, monitor *Monitor) {
	fmt.Print("\033[2J\033[H\033[?25l")
	defer fmt.Print("\033[?25h")

	updates := monitor.AddListener()
	defer monitor.RemoveListener(updates)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Print(renderDashboard(monitor.Snapshot(), time.Now()))
		case snap := <-updates:
			fmt.Print(renderDashboard(snap, time.Now()))
		}
	}
}

func renderDashboard(snap Snapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString("\033[2J\033[H")
	fmt.Fprintf(&b, "Cat/Dog Classifier Monitor - %s\n", now.Format("15:04:05"))
	b.WriteString(strings.Repeat("=", 64) + "\n\n")

	c := snap.Counters
	fmt.Fprintf(&b, "Inferences: %d (failed %d, avg %.1f ms)\n", c.Inferences, c.FailedInferences, c.AvgInferenceMs)
	fmt.Fprintf(&b, "Feedback:   %d (positive %d, negative %d)\n\n", c.Feedback, c.PositiveFeedback, c.NegativeFeedback)

	if len(snap.Instances) == 0 {
		b.WriteString("No instances detected, waiting for heartbeats...\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-22s %-9s %-6s %-10s %-10s\n", "ENDPOINT", "STATUS", "MODEL", "VERSION", "LAST_SEEN")
	for _, inst := range snap.Instances {
		status := inst.Status
		if status != "offline" && now.Sub(inst.LastSeen) > time.Minute {
			status = "stale"
		}
		model := "no"
		if inst.ModelLoaded {
			model = "yes"
		}
		fmt.Fprintf(&b, "%-22s %-9s %-6s %-10s %-10s\n",
			inst.Endpoint, status, model, inst.Version, formatDuration(now.Sub(inst.LastSeen)))
	}
	b.WriteString("\nPress Ctrl+C to exit\n")
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func runHTTPServer(ctx context.Context, monitor *Monitor, addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitor.Snapshot())
	})

	// Server-Sent Events for live updates
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")

		updates := monitor.AddListener()
		defer monitor.RemoveListener(updates)

		send := func(snap Snapshot) {
			data, _ := json.Marshal(snap)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		send(monitor.Snapshot())

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.Context().Done():
				return
			case snap := <-updates:
				send(snap)
			}
		}
	})

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Monitor HTTP server starting", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Monitor HTTP server failed", "error", err)
	}
}
