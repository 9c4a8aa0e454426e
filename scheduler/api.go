package scheduler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rchlabs/rch/env"
	"github.com/rchlabs/rch/internal/redact"
	"github.com/rchlabs/rch/internal/replacer"
	"github.com/rchlabs/rch/internal/socket"
	"github.com/rchlabs/rch/rchapi"
)

// API wraps a Scheduler as the local IPC surface: an HTTP API served over a
// Unix-domain socket, mirroring the classify/build/cancel/drain/status
// operations one-for-one.
type API struct {
	scheduler *Scheduler
	token     string
	logf      func(f string, v ...any)
}

func NewAPI(s *Scheduler, token string, logf func(f string, v ...any)) *API {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &API{scheduler: s, token: token, logf: logf}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		socket.LoggerMiddleware("rchd", a.logf),
		middleware.Recoverer,
		socket.HeadersMiddleware(http.Header{"Content-Type": []string{"application/json"}}),
	)
	if a.token != "" {
		r.Use(socket.AuthMiddleware(a.token, a.logf))
	}

	r.Route("/api/v0", func(r chi.Router) {
		r.Post("/classify", a.classify)
		r.Post("/build", a.build)
		r.Post("/cancel/{id}", a.cancel)
		r.Post("/drain/{id}", a.drain)
		r.Get("/status", a.status)
	})

	return r
}

type classifyRequest struct {
	Raw          string            `json:"raw"`
	WorkDir      string            `json:"work_dir"`
	ToolchainTag string            `json:"toolchain_tag"`
	Env          map[string]string `json:"env"`
}

type classifyResponse struct {
	Verdict    string  `json:"verdict"`
	Tier       int     `json:"tier"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (req classifyRequest) toCommand() rchapi.Command {
	return rchapi.Command{Raw: req.Raw, WorkDir: req.WorkDir, ToolchainTag: req.ToolchainTag, Env: envFromMap(req.Env)}
}

func (a *API) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = socket.WriteError(w, err, http.StatusBadRequest)
		return
	}

	cmd := req.toCommand()
	a.logRequest("classify", cmd)
	c := a.scheduler.Classify(cmd)
	_ = json.NewEncoder(w).Encode(classifyResponse{
		Verdict:    c.Verdict.String(),
		Tier:       int(c.Tier),
		Confidence: c.Confidence,
		Reason:     c.Reason,
	})
}

type buildRequest struct {
	classifyRequest
	AllowLocalFallback bool `json:"allow_local_fallback"`
}

// build streams newline-delimited JSON Event objects for the duration of
// the BuildRequest, per the operation's "stream of events" contract.
func (a *API) build(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = socket.WriteError(w, err, http.StatusBadRequest)
		return
	}

	cmd := req.toCommand()
	a.logRequest("build", cmd)

	_, events, err := a.scheduler.Build(r.Context(), cmd, req.AllowLocalFallback)
	if err != nil && events == nil {
		// A synchronous rejection: nothing was ever queued, so there is no
		// event stream to fall back to.
		_ = socket.WriteError(w, err, statusCodeFor(err))
		return
	}

	// err != nil here when no eligible worker could be selected (with or
	// without local fallback); events still carries the Queued/Failed pair,
	// so the client learns the reason from the terminal event, not the HTTP
	// status.
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.scheduler.Cancel(id); err != nil {
		_ = socket.WriteError(w, err, statusCodeFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) drain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.scheduler.Drain(id); err != nil {
		_ = socket.WriteError(w, err, statusCodeFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(a.scheduler.Status())
}

func statusCodeFor(err error) int {
	switch rchapi.ExitCode(err) {
	case 64:
		return http.StatusBadRequest
	case 102:
		return http.StatusServiceUnavailable
	case 104:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// logRequest writes a single summary line for an inbound classify/build
// request. A Command's Env is an allowlisted snapshot of the caller's own
// environment (see rchapi.Command), so it may legitimately carry values a
// submitter would not want echoed into the daemon's own log: the raw command
// line and the env listing are redacted against the same needle set, via a
// replacer.Mux, before either is formatted into the log line.
func (a *API) logRequest(kind string, cmd rchapi.Command) {
	if cmd.Env == nil {
		a.logf("rchd: %s %q (work_dir=%s toolchain=%s)", kind, cmd.Raw, cmd.WorkDir, cmd.ToolchainTag)
		return
	}

	pairs := cmd.Env.DumpPairs()
	needles := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if len(p.Value) >= redact.LengthMin {
			needles = append(needles, p.Value)
		}
	}

	var rawOut, envOut strings.Builder
	mux := replacer.Mux{redact.New(&rawOut, needles), redact.New(&envOut, needles)}
	_, _ = mux[0].Write([]byte(cmd.Raw))
	for _, p := range pairs {
		_, _ = mux[1].Write([]byte(p.Name + "=" + p.Value + " "))
	}
	_ = mux.Flush()

	a.logf("rchd: %s %q (work_dir=%s toolchain=%s env=%s)", kind, rawOut.String(), cmd.WorkDir, cmd.ToolchainTag, strings.TrimSpace(envOut.String()))
}

func envFromMap(m map[string]string) *env.Environment {
	if len(m) == 0 {
		return nil
	}
	return env.FromMap(m)
}
