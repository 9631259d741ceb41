package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	goFlow "github.com/MrEthical07/goFlow"
	"github.com/MrEthical07/goFlow/middleware"
	"github.com/lithammer/shortuuid/v4"
)

// Config wires the HTTP surface.
type Config struct {
	Guard middleware.Config
	// DeriveVendorCredential, when set, maps an authenticated inbound
	// request to a per-tenant vendor credential. Used by multi-tenant
	// deployments; nil means the engine's process-wide credential.
	DeriveVendorCredential func(r *http.Request) string
}

// Server carries the engine and the route table.
type Server struct {
	engine *goFlow.Engine
	cfg    Config
}

// New returns a Server over engine.
func New(engine *goFlow.Engine, cfg Config) *Server {
	return &Server{
		engine: engine,
		cfg:    cfg,
	}
}

// Handler builds the route table. The guard protects only the authenticate
// endpoint: the callback is reached by end-user browsers and the probes by
// the orchestrator.
func (s *Server) Handler() http.Handler {
	guard := middleware.Guard(s.cfg.Guard)

	mux := http.NewServeMux()
	mux.Handle("POST /authenticate", guard(http.HandlerFunc(s.handleAuthenticate)))
	mux.HandleFunc("GET /callback", s.handleCallback)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	return mux
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req goFlow.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FlowID == "" {
		http.Error(w, "flowId is required", http.StatusBadRequest)
		return
	}

	ctx := goFlow.WithRequestID(r.Context(), shortuuid.New())
	if ip := clientIP(r); ip != "" {
		ctx = goFlow.WithClientIP(ctx, ip)
	}
	if s.cfg.DeriveVendorCredential != nil {
		if credential := s.cfg.DeriveVendorCredential(r); credential != "" {
			ctx = goFlow.WithVendorCredential(ctx, credential)
		}
	}

	resp := s.engine.Authenticate(ctx, &req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	flowID := r.URL.Query().Get("flowId")
	token := r.URL.Query().Get("token")

	ctx := goFlow.WithRequestID(r.Context(), shortuuid.New())
	resumeURL, err := s.engine.HandleCallback(ctx, flowID, token)
	if err != nil {
		switch {
		case errors.Is(err, goFlow.ErrFlowIDMissing):
			http.Error(w, "flowId is required", http.StatusBadRequest)
		case errors.Is(err, goFlow.ErrFlowNotFound):
			http.Error(w, "flow not found", http.StatusNotFound)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, resumeURL, http.StatusFound)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Healthcheck(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
