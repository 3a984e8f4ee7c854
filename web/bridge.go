// Package web exposes the sequencer protocol over HTTP for browser UIs.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"go-cvseq/debug"
	"go-cvseq/protocol"
	"go-cvseq/sequencer"
)

//go:embed static
var static embed.FS

// Responder runs one encoded request and returns the encoded reply
type Responder interface {
	Respond(ctx context.Context, data []byte) []byte
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Bridge answers /api requests by forwarding them to a Responder
type Bridge struct {
	responder Responder
	srv       *http.Server
}

// NewBridge creates a bridge in front of r
func NewBridge(r Responder) *Bridge {
	b := &Bridge{responder: r}
	b.srv = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
	}
	return b
}

// Handler returns the routed, CORS-enabled handler
func (b *Bridge) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/api", b.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/api", b.handlePost).Methods(http.MethodPost)
	router.HandleFunc("/api", handleUnsupported)
	router.PathPrefix("/").Handler(controlPage()).Methods(http.MethodGet, http.MethodHead)
	return cors.AllowAll().Handler(router)
}

// controlPage serves the browser control panel, which talks to /api
func controlPage() http.Handler {
	root, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(root))
}

// Serve accepts connections on ln until Close is called
func (b *Bridge) Serve(ln net.Listener) error {
	debug.Info("web", "http bridge listening", "addr", ln.Addr().String())
	err := b.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the bridge down, waiting for in-flight requests
func (b *Bridge) Close(ctx context.Context) error {
	return b.srv.Shutdown(ctx)
}

func (b *Bridge) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var cmd sequencer.Command
	switch {
	case q.Has("command"):
		cmd.Type = sequencer.CommandType(q.Get("command"))
	case q.Has("tempo"):
		bpm, err := strconv.Atoi(q.Get("tempo"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Tempo must be an integer")
			return
		}
		cmd = sequencer.Command{Type: sequencer.CmdTempo, Tempo: bpm}
	case q.Has("get_sequences"):
		cmd.Type = sequencer.CmdGetSequences
	default:
		writeError(w, http.StatusBadRequest, "No command received")
		return
	}

	body, err := json.Marshal(protocol.NewRequest(cmd))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.forward(w, r, body)
}

func (b *Bridge) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, protocol.MaxRequestSize))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON data received")
		return
	}
	var typ string
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	if sequencer.CommandType(typ) == sequencer.CmdUpdateSequence {
		for _, key := range []string{"channel", "cv_values", "gate_states"} {
			if _, ok := fields[key]; !ok {
				writeError(w, http.StatusBadRequest, "Missing required sequence data")
				return
			}
		}
	}
	b.forward(w, r, body)
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request, body []byte) {
	out := b.responder.Respond(r.Context(), body)
	debug.Log("web", "%s %s -> %s", r.Method, r.URL.RequestURI(), out)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func handleUnsupported(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Unsupported request method")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Status: "error", Message: msg})
}
