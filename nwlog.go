package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
)

const (
	logStreamFile    = "logs_stream.txt"
	logStreamMaxSize = 5 * 1024 * 1024
	historyLines     = 1000
)

// NetworkLogger is a zap sink that keeps a size-rotated log file and streams
// every line to HTTP clients over server-sent events.
type NetworkLogger struct {
	clients map[chan string]bool
	mu      sync.RWMutex

	fileMu  sync.Mutex
	logFile *os.File
	path    string
	maxSize int64

	addr   string
	server *http.Server
}

func NewNetworkLogger(port, path string, maxSize int64) (*NetworkLogger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	nl := &NetworkLogger{
		clients: make(map[chan string]bool),
		logFile: f,
		path:    path,
		maxSize: maxSize,
		addr:    ":" + port,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/logs", nl.handleSSE)
	mux.HandleFunc("/logs/history", nl.handleHistory)
	nl.server = &http.Server{Addr: nl.addr, Handler: mux}
	return nl, nil
}

// Start binds the port and serves in the background.
func (nl *NetworkLogger) Start() error {
	ln, err := net.Listen("tcp", nl.addr)
	if err != nil {
		return fmt.Errorf("log stream listen: %w", err)
	}
	go func() {
		if err := nl.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "log stream server: %v\n", err)
		}
	}()
	return nil
}

func (nl *NetworkLogger) Stop() error {
	err := nl.server.Close()

	nl.fileMu.Lock()
	defer nl.fileMu.Unlock()
	if nl.logFile != nil {
		nl.logFile.Close()
		nl.logFile = nil
	}
	return err
}

func (nl *NetworkLogger) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))

	nl.fileMu.Lock()
	if nl.logFile != nil {
		nl.rotate()
		if nl.logFile != nil {
			nl.logFile.WriteString(msg + "\n")
		}
	}
	nl.fileMu.Unlock()

	nl.mu.Lock()
	for client := range nl.clients {
		select {
		case client <- msg:
		default:
			// slow reader
			delete(nl.clients, client)
			close(client)
		}
	}
	nl.mu.Unlock()

	return len(p), nil
}

func (nl *NetworkLogger) Sync() error {
	nl.fileMu.Lock()
	defer nl.fileMu.Unlock()
	if nl.logFile == nil {
		return nil
	}
	return nl.logFile.Sync()
}

// rotate moves the file aside once it outgrows maxSize. fileMu must be held.
func (nl *NetworkLogger) rotate() {
	stat, err := nl.logFile.Stat()
	if err != nil || stat.Size() <= nl.maxSize {
		return
	}

	nl.logFile.Close()
	os.Rename(nl.path, nl.path+".backup")

	f, err := os.OpenFile(nl.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log stream rotate: %v\n", err)
		nl.logFile = nil
		return
	}
	nl.logFile = f
}

func (nl *NetworkLogger) addClient() chan string {
	client := make(chan string, 100)
	nl.mu.Lock()
	nl.clients[client] = true
	nl.mu.Unlock()
	return client
}

func (nl *NetworkLogger) removeClient(client chan string) {
	nl.mu.Lock()
	if nl.clients[client] {
		delete(nl.clients, client)
		close(client)
	}
	nl.mu.Unlock()
}

func (nl *NetworkLogger) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := nl.addClient()
	defer nl.removeClient(client)

	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	fmt.Fprint(w, sseEvent("Connected to modbot log stream"))
	flush()

	for {
		select {
		case msg, ok := <-client:
			if !ok {
				return
			}
			fmt.Fprint(w, sseEvent(msg))
			flush()
		case <-r.Context().Done():
			return
		}
	}
}

// sseEvent frames msg as one server-sent event. Every line gets its own
// data field so multi-line entries such as stack traces stay in one event.
func sseEvent(msg string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(msg, "\r\n"), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(strings.TrimSuffix(line, "\r"))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// handleHistory serves the last lines of the current log file.
func (nl *NetworkLogger) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	nl.fileMu.Lock()
	data, err := os.ReadFile(nl.path)
	nl.fileMu.Unlock()
	if err != nil {
		http.Error(w, "no history", http.StatusNotFound)
		return
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > historyLines {
		lines = lines[len(lines)-historyLines:]
	}
	fmt.Fprint(w, strings.Join(lines, "\n"))
}
