// Package proxyhook is a minimal forward-proxy flow adapter: it drives
// the flow.Controller's request/response-headers/response hooks from a
// plain net/http reverse-proxy handler. It assumes it is already handling
// a decrypted HTTP exchange — genuine TLS interception (CA generation,
// SNI sniffing) is a separate, out-of-scope concern (see internal/cert
// for the trust-store side of that story).
package proxyhook

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentprobe/agentprobe/internal/classifier"
	"github.com/agentprobe/agentprobe/internal/flow"
	"github.com/agentprobe/agentprobe/internal/model"
)

// hopByHopHeaders must never be forwarded across a proxy hop.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Adapter is an http.Handler that forwards each request to its upstream
// and drives the flow controller's capture hooks alongside the forward.
type Adapter struct {
	transport  *http.Transport
	controller *flow.Controller
}

// New builds an Adapter. transport should be a tuned *http.Transport
// (keep-alives, HTTP/2) shared across all forwarded requests.
func New(transport *http.Transport, controller *flow.Controller) *Adapter {
	return &Adapter{transport: transport, controller: controller}
}

// ServeHTTP forwards r to its own URL's host untouched, and drives the
// flow controller's hooks so the exchange is captured alongside.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flowID := model.NewID()

	upstreamURL := *r.URL
	if upstreamURL.Scheme == "" {
		upstreamURL.Scheme = "https"
	}
	if upstreamURL.Host == "" {
		upstreamURL.Host = r.Host
	}

	headers := flattenHeaders(r.Header)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("proxyhook: failed reading request body", "error", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	a.controller.HandleRequest(flowID, flow.RequestIn{
		Method:  r.Method,
		URL:     upstreamURL.String(),
		Host:    upstreamURL.Host,
		Path:    r.URL.Path,
		Headers: headers,
		Body:    bytes.NewReader(body),
	})

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), bytes.NewReader(body))
	if err != nil {
		slog.Error("proxyhook: failed building upstream request", "error", err)
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}
	copyHeaders(upstreamReq.Header, r.Header)
	upstreamReq.ContentLength = int64(len(body))

	resp, err := a.transport.RoundTrip(upstreamReq)
	if err != nil {
		slog.Error("proxyhook: upstream request failed", "upstream", upstreamURL.String(), "error", err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respHeaders := flattenHeaders(resp.Header)
	contentType := resp.Header.Get("Content-Type")
	streamCallback := a.controller.HandleResponseHeaders(flowID, contentType)

	copyResponseHeaders(w.Header(), resp.Header)

	if classifier.IsSSEResponse(contentType) {
		w.Header().Del("Content-Length") // relayed as a stream; final size isn't known up front
		w.WriteHeader(resp.StatusCode)
		a.streamThrough(w, resp.Body, streamCallback)
		a.controller.HandleResponse(flowID, flow.ResponseIn{
			StatusCode: resp.StatusCode,
			Headers:    respHeaders,
		})
		return
	}

	w.WriteHeader(resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("proxyhook: failed reading upstream response body", "error", err)
	}
	w.Write(respBody)

	a.controller.HandleResponse(flowID, flow.ResponseIn{
		StatusCode: resp.StatusCode,
		Headers:    respHeaders,
		Body:       bytes.NewReader(respBody),
	})
}

// streamThrough relays resp.Body to w a chunk at a time, flushing after
// each write and handing the same bytes to cb for capture. The client
// sees the stream exactly as the upstream sent it; capture never stalls
// delivery since cb only appends to in-memory state. cb is nil when the
// flow has no pending state (e.g. the request hook never ran for it), in
// which case the chunk is still relayed but never fed to the controller.
func (a *Adapter) streamThrough(w http.ResponseWriter, body io.Reader, cb func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if _, writeErr := w.Write(chunk); writeErr != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			if cb != nil {
				cb(chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("proxyhook: error reading upstream stream", "error", err)
			}
			return
		}
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] {
			continue
		}
		if strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// NewTransport builds the tuned upstream client transport, mirroring the
// keep-alive/HTTP2 tuning used elsewhere for proxied upstream calls.
func NewTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
}
