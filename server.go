package lnurlpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ellemouton/lnurlpay/node"
	"github.com/skip2/go-qrcode"
)

const (
	// defaultQRSize is the edge length in pixels of served QR codes.
	defaultQRSize = 256

	// shutdownTimeout bounds how long in-flight requests get to finish.
	shutdownTimeout = 10 * time.Second
)

// ServerConfig holds what the HTTP server needs.
type ServerConfig struct {
	// ListenAddr is the address the server listens on.
	ListenAddr string

	// Service is the validated service configuration.
	Service *ServiceConfig

	// Dialer opens connections to the node.
	Dialer node.Dialer

	// EnableMetrics serves prometheus metrics on /metrics.
	EnableMetrics bool
}

// Server serves the LNURL-pay endpoints.
type Server struct {
	cfg     *ServerConfig
	handler *InvoiceHandler
	metrics *metrics
	mux     *http.ServeMux
	lnurl   string
}

// NewServer creates a server. Nothing is started.
func NewServer(cfg *ServerConfig) (*Server, error) {
	lnurl, err := EncodeURL(cfg.Service.EndpointURL("lnurl"))
	if err != nil {
		return nil, configErr(fmt.Errorf("unable to encode lnurl: %w",
			err))
	}

	s := &Server{
		cfg:     cfg,
		handler: NewInvoiceHandler(cfg.Service, cfg.Dialer),
		metrics: newMetrics(),
		mux:     http.NewServeMux(),
		lnurl:   lnurl,
	}

	s.mux.HandleFunc("/lnurl", s.pay)
	s.mux.HandleFunc("/invoice", s.invoice)
	s.mux.HandleFunc("/qr", s.qr)
	if cfg.EnableMetrics {
		s.mux.Handle("/metrics", s.metrics.handler())
	}

	return s, nil
}

// LNURL returns the bech32 encoded LNURL of the pay endpoint.
func (s *Server) LNURL() string {
	return s.lnurl
}

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w",
			s.cfg.ListenAddr, err)
	}

	return s.Serve(ctx, l)
}

// Serve serves requests on l until ctx is canceled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.printHello(l.Addr())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(l)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
	}

	log.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) printHello(addr net.Addr) {
	log.Infof("Listening on %v", addr)
	log.Infof("Pay endpoint: %s", s.cfg.Service.EndpointURL("lnurl"))
	log.Infof("Static LNURL-pay code: %s", s.lnurl)

	if pubKey, ok := s.cfg.Service.NostrPubKey(); ok {
		log.Infof("Zaps enabled for %s", pubKey)
	}
}

// pay serves the payment descriptor.
func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	s.respond(w, "lnurl", BuildDescriptor(s.cfg.Service), nil)
}

// invoice serves the callback. Every call creates an invoice on the node so
// only GET is accepted.
func (s *Server) invoice(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	params, err := ParseInvoiceRequestParams(r.URL.Query())
	if err != nil {
		s.respond(w, "invoice", nil, err)
		return
	}

	result, err := s.handler.Handle(r.Context(), params)
	s.respond(w, "invoice", result, err)
}

// qr serves a PNG QR code of the static LNURL.
func (s *Server) qr(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.ParseUint(v, 10, 12)
		if err != nil || n == 0 {
			s.respond(w, "qr", nil, newError(
				KindMalformedRequest, "invalid size", err,
			))
			return
		}
		size = int(n)
	}

	png, err := qrcode.Encode("lightning:"+s.lnurl, qrcode.Medium, size)
	if err != nil {
		s.respond(w, "qr", nil, newError(
			KindSerializationFailure, "", err,
		))
		return
	}

	s.metrics.observe("qr", nil)

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// respond writes resp as JSON, or the LNURL error body for err.
func (s *Server) respond(w http.ResponseWriter, endpoint string,
	resp interface{}, err error) {

	status := http.StatusOK
	if err == nil {
		body, encErr := encodeJSON(resp)
		if encErr == nil {
			s.metrics.observe(endpoint, nil)
			writeJSON(w, status, body)
			return
		}

		err = newError(KindSerializationFailure, "", encErr)
	}

	status = HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s request failed: %v", endpoint, err)
	} else {
		log.Debugf("%s request rejected: %v", endpoint, err)
	}
	s.metrics.observe(endpoint, err)

	body, encErr := encodeJSON(&ErrorResponse{
		Status: StatusError,
		Reason: errorReason(err),
	})
	if encErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, body)
}

func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// allowMethods rejects requests whose method is not one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request,
	methods ...string) bool {

	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}

	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

	return false
}
