package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// CredentialHeader carries the per-workspace credential. It is stripped
// before the request reaches the container.
const CredentialHeader = "X-Workspace-Credential"

const pathPrefix = "/api/proxy/"

// credentialLogPrefix is how many credential characters reach the log
// on a failed lookup.
const credentialLogPrefix = 8

// AddressResolver resolves a container's address on the workspace
// network. Implemented by engine.DockerEngine.
type AddressResolver interface {
	ContainerIP(ctx context.Context, handle string) (string, error)
}

// ErrorWriter renders a domain error to the client. The HTTP layer
// injects its envelope renderer so ladder failures and upstream errors
// look like every other API error.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Handler authenticates proxy requests and streams them to the
// workspace container. The upstream target is resolved per request:
// container addresses change across restarts and must never be cached.
type Handler struct {
	store      storage.Store
	resolver   AddressResolver
	port       int
	transport  http.RoundTripper
	writeError ErrorWriter
	log        zerolog.Logger
}

// NewHandler creates the proxy handler. Requests reach it on
// /api/proxy/{workspace_id}/{rest...}.
func NewHandler(store storage.Store, resolver AddressResolver, cfg config.Workspace, writeError ErrorWriter) *Handler {
	return &Handler{
		store:    store,
		resolver: resolver,
		port:     cfg.Port,
		transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: cfg.ProxyDialTimeout}).DialContext,
		},
		writeError: writeError,
		log:        log.WithComponent("proxy"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID, rest, err := splitProxyPath(r.URL.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ws, err := h.authenticate(r, workspaceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	target, err := h.resolve(r.Context(), ws)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.forward(w, r, target, rest)
}

// splitProxyPath extracts the workspace id and the upstream path. The
// prefix and id segment are consumed; an empty remainder becomes "/".
func splitProxyPath(path string) (uuid.UUID, string, error) {
	trimmed := strings.TrimPrefix(path, pathPrefix)
	if trimmed == path {
		return uuid.Nil, "", types.NewError(types.KindNotFound, "not found")
	}
	idStr, rest, _ := strings.Cut(trimmed, "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, "", types.NewError(types.KindValidation, "invalid workspace id")
	}
	return id, "/" + rest, nil
}

// authenticate walks the admission ladder: credential present, credential
// resolves, credential matches the path workspace, owner entitled. The
// two credential failures share one message so responses do not reveal
// whether a credential exists.
func (h *Handler) authenticate(r *http.Request, workspaceID uuid.UUID) (*types.Workspace, error) {
	credential := r.Header.Get(CredentialHeader)
	if credential == "" {
		return nil, types.NewError(types.KindAuthRequired, "workspace credential required")
	}

	ws, err := h.store.GetWorkspaceByCredential(r.Context(), credential)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			h.log.Warn().
				Str("credential_prefix", log.Prefix(credential, credentialLogPrefix)).
				Msg("unknown workspace credential")
			return nil, types.NewError(types.KindAuthFailed, "invalid workspace credential")
		}
		return nil, err
	}
	if ws.ID != workspaceID {
		h.log.Warn().
			Str("credential_prefix", log.Prefix(credential, credentialLogPrefix)).
			Str("workspace_id", workspaceID.String()).
			Msg("credential does not match workspace")
		return nil, types.NewError(types.KindAuthFailed, "invalid workspace credential")
	}

	entitled, err := h.store.HasActiveSubscription(r.Context(), ws.OwnerID)
	if err != nil {
		return nil, err
	}
	if !entitled {
		return nil, types.NewError(types.KindUnentitled, "active subscription required")
	}
	return ws, nil
}

// resolve produces the upstream URL for a running workspace.
func (h *Handler) resolve(ctx context.Context, ws *types.Workspace) (*url.URL, error) {
	if ws.RuntimeState != types.WorkspaceStateRunning || ws.EngineHandle == nil {
		return nil, types.NewError(types.KindNotRunning,
			fmt.Sprintf("workspace is %s", ws.RuntimeState))
	}

	ip, err := h.resolver.ContainerIP(ctx, *ws.EngineHandle)
	if err != nil {
		return nil, err
	}
	if ip == "" {
		return nil, types.NewError(types.KindUnreachable, "workspace has no address yet")
	}

	return &url.URL{Scheme: "http", Host: net.JoinHostPort(ip, strconv.Itoa(h.port))}, nil
}

// forward streams the request upstream. FlushInterval -1 flushes every
// write through immediately so server-sent events and long polls work.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, target *url.URL, rest string) {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = rest
			req.URL.RawPath = ""
			req.Header.Del(CredentialHeader)
		},
		Transport:     h.transport,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			h.log.Error().Err(err).
				Str("upstream", target.Host).
				Msg("upstream request failed")
			h.writeError(w, req, types.NewError(types.KindUpstreamUnreachable, "workspace did not respond"))
		},
	}
	proxy.ServeHTTP(w, r)
}
