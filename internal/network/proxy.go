package network

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
)

// MITM initialization mutates package-level goproxy state, so it runs
// exactly once per process regardless of how many proxies start.
var (
	mitmInitOnce  sync.Once
	mitmInitError error
	isMITMEnabled bool
)

// MaxCapturedBody caps how much of a response body enters the capture
// ring; the ring is an operator aid, not an archive.
const MaxCapturedBody = 64 * 1024

// Proxy is the opt-in capture proxy for traffic that bypasses the
// browser (curl, mobile clients pointed at the proxy). It records into
// the same ring the session host feeds and enforces the same intercept
// rules.
type Proxy struct {
	cfg     config.ProxyConfig
	capture *Capture
	limiter *rate.Limiter
	logger  *zap.Logger

	proxy  *goproxy.ProxyHttpServer
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	started  bool
}

// proxyTiming rides goproxy's per-exchange UserData so the response
// hook can compute durations.
type proxyTiming struct {
	start   time.Time
	blocked bool
}

// NewProxy builds the capture proxy. When CA material is configured the
// proxy terminates TLS (MITM) so HTTPS exchanges are captured in the
// clear; without it, CONNECT traffic is tunneled and only visible as an
// opaque method/host pair.
func NewProxy(cfg config.ProxyConfig, capture *Capture, rateLimit float64, logger *zap.Logger) (*Proxy, error) {
	if capture == nil {
		return nil, errors.New("capture proxy needs a capture ring")
	}
	log := logger.Named("proxy")

	srv := goproxy.NewProxyHttpServer()
	srv.Tr = newUpstreamTransport(true, log)

	if cfg.CACert != "" && cfg.CAKey != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read proxy CA certificate: %w", err)
		}
		caKey, err := os.ReadFile(cfg.CAKey)
		if err != nil {
			return nil, fmt.Errorf("read proxy CA key: %w", err)
		}
		if err := configureMITM(caCert, caKey); err != nil {
			return nil, fmt.Errorf("configure MITM capabilities: %w", err)
		}
		log.Info("MITM capabilities initialized.")
	} else {
		log.Warn("CA certificate or key missing, MITM disabled. Operating in tunneling mode.")
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), int(rateLimit)+1)
	}

	p := &Proxy{
		cfg:     cfg,
		capture: capture,
		limiter: limiter,
		logger:  log,
		proxy:   srv,
	}
	p.setupHandlers()
	return p, nil
}

func (p *Proxy) setupHandlers() {
	p.proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		if isMITMEnabled {
			return goproxy.MitmConnect, host
		}
		return goproxy.OkConnect, host
	}))

	p.proxy.OnRequest().DoFunc(p.handleRequest)
	p.proxy.OnResponse().DoFunc(p.handleResponse)
}

// handleRequest applies rate limiting and the intercept table before a
// request leaves the proxy.
func (p *Proxy) handleRequest(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	timing := &proxyTiming{start: time.Now()}
	ctx.UserData = timing

	if p.limiter != nil {
		if err := p.limiter.Wait(r.Context()); err != nil {
			p.logger.Debug("Request dropped while rate limited", zap.String("url", r.URL.String()), zap.Error(err))
			return r, goproxy.NewResponse(r, goproxy.ContentTypeText, http.StatusTooManyRequests, "capture proxy: rate limited")
		}
	}

	rule := p.capture.Rules().Match(r.URL.String())
	if rule == nil {
		return r, nil
	}

	switch {
	case rule.Block:
		timing.blocked = true
		p.recordExchange(r, nil, timing)
		status := rule.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		return r, goproxy.NewResponse(r, goproxy.ContentTypeText, status, "blocked by intercept rule")

	case rule.Respond != "" || rule.RespondFile != "":
		body := rule.Respond
		if rule.RespondFile != "" {
			data, err := os.ReadFile(rule.RespondFile)
			if err != nil {
				p.logger.Warn("Intercept respond-file unreadable, passing request through",
					zap.String("pattern", rule.Pattern), zap.Error(err))
				return r, nil
			}
			body = string(data)
		}
		status := rule.Status
		if status == 0 {
			status = http.StatusOK
		}
		resp := goproxy.NewResponse(r, GuessContentType(body), status, body)
		return r, resp

	case rule.Status != 0:
		// Status-only rules rewrite the upstream status; handled on the
		// response side.
		return r, nil
	}
	return r, nil
}

// handleResponse records the exchange and decodes compressed bodies
// when body capture is on.
func (p *Proxy) handleResponse(r *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	timing, _ := ctx.UserData.(*proxyTiming)
	if timing == nil {
		timing = &proxyTiming{start: time.Now()}
	}

	if r == nil {
		errorMsg := "unknown error"
		if ctx.Error != nil {
			errorMsg = ctx.Error.Error()
		}
		p.logger.Warn("Proxy received nil response from upstream", zap.String("error", errorMsg))
		if ctx.Req == nil {
			return nil
		}
		return goproxy.NewResponse(ctx.Req, goproxy.ContentTypeText, http.StatusBadGateway,
			fmt.Sprintf("capture proxy: upstream connection failed: %s", errorMsg))
	}

	if rule := p.capture.Rules().Match(requestURL(ctx)); rule != nil && rule.Status != 0 && !rule.Block && rule.Respond == "" && rule.RespondFile == "" {
		r.StatusCode = rule.Status
		r.Status = fmt.Sprintf("%d %s", rule.Status, http.StatusText(rule.Status))
	}

	p.recordExchange(ctx.Req, r, timing)
	return r
}

// recordExchange appends one entry to the capture ring. Body capture
// drains (and restores) up to MaxCapturedBody of the response.
func (p *Proxy) recordExchange(req *http.Request, resp *http.Response, timing *proxyTiming) {
	if req == nil {
		return
	}
	entry := schemas.CapturedRequest{
		When:    timing.start,
		Method:  req.Method,
		URL:     req.URL.String(),
		TookMs:  time.Since(timing.start).Milliseconds(),
		Blocked: timing.blocked,
	}

	if resp != nil {
		entry.Status = resp.StatusCode
		entry.Size = resp.ContentLength
		entry.Type = resp.Header.Get("Content-Type")

		if p.capture.CaptureBodies() && IsTextContent(entry.Type) && resp.Body != nil {
			if err := DecompressResponse(resp); err != nil {
				p.logger.Debug("Could not decode response body for capture", zap.String("url", entry.URL), zap.Error(err))
			} else {
				body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCapturedBody))
				if err == nil {
					rest, _ := io.ReadAll(resp.Body)
					_ = resp.Body.Close()
					full := append(body, rest...)
					resp.Body = io.NopCloser(strings.NewReader(string(full)))
					resp.ContentLength = int64(len(full))
					entry.Body = string(body)
					entry.Size = int64(len(full))
				}
			}
		}
	}

	p.capture.Add(entry)
}

// Start binds the configured address and serves in the background. A
// bind failure surfaces immediately rather than from the serve
// goroutine.
func (p *Proxy) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("capture proxy already started")
	}

	ln, err := net.Listen("tcp", p.cfg.Address)
	if err != nil {
		return fmt.Errorf("capture proxy listen on %s: %w", p.cfg.Address, err)
	}

	server := &http.Server{
		Handler:      p.proxy,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(p.logger.Named("http_server")),
	}
	p.server = server
	p.listener = ln
	p.started = true

	go func() {
		p.logger.Info("Capture proxy listening", zap.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Capture proxy stopped with an error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (p *Proxy) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Stop shuts the proxy down, honoring the context deadline.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.listener = nil
	p.started = false
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("capture proxy shutdown: %w", err)
	}
	p.logger.Info("Capture proxy stopped gracefully.")
	return nil
}

// configureMITM installs the CA into goproxy's package-level connect
// actions. sync.Once makes repeat calls return the first outcome.
func configureMITM(caCert, caKey []byte) error {
	mitmInitOnce.Do(func() {
		ca, err := tls.X509KeyPair(caCert, caKey)
		if err != nil {
			mitmInitError = fmt.Errorf("invalid CA certificate/key pair: %w", err)
			return
		}
		if len(ca.Certificate) == 0 {
			mitmInitError = errors.New("CA certificate chain is empty")
			return
		}
		if ca.Leaf, err = x509.ParseCertificate(ca.Certificate[0]); err != nil {
			mitmInitError = fmt.Errorf("parse CA certificate leaf: %w", err)
			return
		}

		goproxy.GoproxyCa = ca
		tlsConfig := goproxy.TLSConfigFromCA(&ca)
		goproxy.OkConnect = &goproxy.ConnectAction{Action: goproxy.ConnectAccept, TLSConfig: tlsConfig}
		goproxy.MitmConnect = &goproxy.ConnectAction{Action: goproxy.ConnectMitm, TLSConfig: tlsConfig}
		goproxy.HTTPMitmConnect = &goproxy.ConnectAction{Action: goproxy.ConnectHTTPMitm, TLSConfig: tlsConfig}
		goproxy.RejectConnect = &goproxy.ConnectAction{Action: goproxy.ConnectReject, TLSConfig: tlsConfig}

		isMITMEnabled = true
	})
	return mitmInitError
}

func requestURL(ctx *goproxy.ProxyCtx) string {
	if ctx != nil && ctx.Req != nil && ctx.Req.URL != nil {
		return ctx.Req.URL.String()
	}
	return ""
}

// IsTextContent reports whether a Content-Type is worth capturing as a
// body; binary payloads stay out of the ring.
func IsTextContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "javascript") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "x-www-form-urlencoded")
}

// GuessContentType picks a Content-Type for synthetic intercept
// responses based on the body's leading bytes.
func GuessContentType(body string) string {
	trimmed := strings.TrimSpace(body)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "application/json"
	case strings.HasPrefix(trimmed, "<"):
		return goproxy.ContentTypeHtml
	default:
		return goproxy.ContentTypeText
	}
}
