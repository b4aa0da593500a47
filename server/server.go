// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dalemusser/usergrid/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
)

// errInsecureKey marks a key file readable by group or others.
var errInsecureKey = errors.New("overly permissive permissions")

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM.
// The returned cancel function also stops signal delivery.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over plain HTTP, HTTPS with
// manual certificates, or HTTPS via Let's Encrypt (http-01), and blocks
// until ctx is canceled or a server fails. HTTPS modes also run a :80
// server that redirects (and answers ACME challenges when applicable).
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.CoreConfig,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return errors.New("ListenAndServeWithContext: cfg is nil")
	}
	if handler == nil {
		return errors.New("ListenAndServeWithContext: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, handler, logger)
	httpAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
	httpsAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)

	var (
		ln  net.Listener
		aux *http.Server
		err error
	)

	switch {
	case !cfg.HTTP.UseHTTPS:
		ln, err = net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	case cfg.TLS.UseLetsEncrypt:
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
			Cache:      autocert.DirCache(cfg.TLS.LetsEncryptCacheDir),
			Email:      cfg.TLS.LetsEncryptEmail,
		}
		aux = newHTTPServer(cfg, m.HTTPHandler(httpRedirectHandler()), logger)
		aux.Addr = ":80"

		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: m.GetCertificate}
		ln, err = listenTLS(httpsAddr, srv.TLSConfig)
		if err != nil {
			return err
		}
		logger.Info("HTTPS server (Let's Encrypt) listening",
			zap.String("addr", httpsAddr), zap.String("domain", cfg.TLS.Domain))

	default:
		if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
			if !errors.Is(err, errInsecureKey) || cfg.Env == "prod" {
				return err
			}
			logger.Warn("TLS key file security warning (fatal in prod)", zap.Error(err))
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		aux = newHTTPServer(cfg, httpRedirectHandler(), logger)
		aux.Addr = ":80"

		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
		ln, err = listenTLS(httpsAddr, srv.TLSConfig)
		if err != nil {
			return err
		}
		logger.Info("HTTPS server (manual TLS) listening",
			zap.String("addr", httpsAddr), zap.String("cert_file", cfg.TLS.CertFile))
	}

	return serve(ctx, srv, ln, aux, cfg.HTTP.ShutdownTimeout, logger)
}

// serve runs srv on ln (and aux on its own address) until ctx ends or
// either server fails, then shuts both down within shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, aux *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() { serveErr <- ignoreClosed(srv.Serve(ln)) }()

	// A nil channel never fires, so auxErr is inert in HTTP-only mode.
	var auxErr chan error
	if aux != nil {
		auxErr = make(chan error, 1)
		go func() { auxErr <- ignoreClosed(aux.ListenAndServe()) }()
		logger.Info("redirect server listening", zap.String("addr", aux.Addr))
	}

	shutdownAux := func(ctx context.Context) {
		if aux != nil {
			_ = aux.Shutdown(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server")
			// ctx is already done, so the shutdown window hangs off Background.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownAux(shutdownCtx)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = ln.Close()
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-serveErr:
			shutdownAux(context.Background())
			_ = ln.Close()
			if err != nil {
				return fmt.Errorf("primary server error: %w", err)
			}
			return nil

		case err := <-auxErr:
			if err != nil {
				if closeErr := srv.Close(); closeErr != nil {
					logger.Error("close primary after redirect server failure", zap.Error(closeErr))
				}
				_ = ln.Close()
				return fmt.Errorf("redirect server error: %w", err)
			}
			aux, auxErr = nil, nil
		}
	}
}

func newHTTPServer(cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}
	return srv
}

func listenTLS(addr string, tlsCfg *tls.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen https %s: %w", addr, err)
	}
	return tls.NewListener(ln, tlsCfg), nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// httpRedirectHandler redirects to the HTTPS form of the request URL after
// rejecting hosts and paths that could smuggle headers into Location.
func httpRedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqURI := r.URL.RequestURI()
		if !isValidHost(r.Host) || strings.ContainsFunc(reqURI, isControl) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+reqURI, http.StatusMovedPermanently)
	})
}

func isControl(c rune) bool { return c < 0x20 || c == 0x7f }

// isValidHost accepts host, host:port and bracketed IPv6 forms.
func isValidHost(host string) bool {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return false
	}

	hostPart, portStr, err := net.SplitHostPort(host)
	if err != nil {
		hostPart = host
	} else if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return false
		}
	}
	if hostPart == "" || strings.ContainsFunc(hostPart, isControl) {
		return false
	}

	if inner, ok := strings.CutPrefix(hostPart, "["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok || inner == "" {
			return false
		}
		if zone := strings.IndexByte(inner, '%'); zone != -1 {
			inner = inner[:zone]
		}
		return net.ParseIP(inner) != nil
	}
	return true
}

// validateTLSFiles checks that both files exist and are regular files. A key
// readable by group or others yields an error wrapping errInsecureKey.
func validateTLSFiles(certFile, keyFile string) error {
	if certFile == "" || keyFile == "" {
		return errors.New("manual TLS selected but cert_file / key_file not provided")
	}
	for _, f := range []struct{ kind, path string }{{"certificate", certFile}, {"key", keyFile}} {
		info, err := os.Stat(f.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("TLS %s file does not exist: %s", f.kind, f.path)
		case err != nil:
			return fmt.Errorf("cannot access TLS %s file %s: %w", f.kind, f.path, err)
		case info.IsDir():
			return fmt.Errorf("TLS %s path is a directory: %s", f.kind, f.path)
		}
		if f.kind == "key" && runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
			return fmt.Errorf("TLS key file %s has %w %o (want 0600)", f.path, errInsecureKey, info.Mode().Perm())
		}
	}
	return nil
}
