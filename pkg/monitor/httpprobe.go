package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	MaxRedirects           = 3
	MaxResponseBytes       = 32 * 1024
	DefaultProbeTimeout    = 3 * time.Second
	probeUserAgent         = "uptime-monitor/1.0"
)

// HTTPProbe performs guarded HTTP probes. A single instance is shared
// across every check; its Transport dials only the address validated for
// the current hop, never trusting its own DNS resolution.
type HTTPProbe struct {
	guard     *Guard
	client    *http.Client
}

type dialTargetKey struct{}

// NewHTTPProbe builds an HTTPProbe bound to guard.
func NewHTTPProbe(guard *Guard) *HTTPProbe {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			target, ok := ctx.Value(dialTargetKey{}).(string)
			if !ok || target == "" {
				return nil, errors.New("probe: no validated dial target in context")
			}
			dialer := &net.Dialer{Timeout: DefaultProbeTimeout}
			return dialer.DialContext(ctx, network, target)
		},
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	client := &http.Client{
		Transport: transport,
		// Redirects are followed manually so every hop is re-validated.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPProbe{guard: guard, client: client}
}

// Run executes the guarded HTTP probe for check and returns a neutral
// Outcome; it never returns an error past this boundary.
func (p *HTTPProbe) Run(ctx context.Context, check *Check) Outcome {
	start := time.Now()
	resp, resolvedIP, finalURL, hops, err := p.followWithGuards(ctx, check)
	latency := time.Since(start)

	if err != nil {
		var gerr *GuardError
		if errors.As(err, &gerr) {
			return Outcome{Success: false, Status: StatusFailed, ReasonCode: gerr.Reason, Latency: latency}
		}
		var perr *probeError
		if errors.As(err, &perr) {
			return Outcome{Success: false, Status: StatusFailed, ReasonCode: perr.reason, Latency: latency}
		}
		return Outcome{Success: false, Status: StatusFailed, ReasonCode: ReasonHTTPError, Latency: latency}
	}
	defer resp.body.Close()

	status, reason := classifyHTTPStatus(resp.statusCode, check.AcceptedStatusCodes)
	out := Outcome{
		Success:       status == StatusOk,
		Status:        status,
		StatusCode:    resp.statusCode,
		Latency:       latency,
		ReasonCode:    reason,
		ResolvedIP:    resolvedIP.String(),
		FinalURL:      finalURL,
		RedirectHops:  hops,
		BodyTruncated: resp.bodyTruncated,
	}
	return out
}

type probeError struct {
	reason  ReasonCode
	message string
}

func (e *probeError) Error() string { return e.message }

func newProbeErr(reason ReasonCode, message string) *probeError {
	return &probeError{reason: reason, message: message}
}

// cappedResponse is an HTTP response whose body has been read (or skipped)
// under the 32 KiB cap.
type cappedResponse struct {
	statusCode    int
	header        http.Header
	contentLength int64
	bodyTruncated bool
	body          io.Closer
}

func (p *HTTPProbe) followWithGuards(ctx context.Context, check *Check) (*cappedResponse, net.IP, string, int, error) {
	currentURL, err := url.Parse(check.URL)
	if err != nil {
		return nil, nil, "", 0, newProbeErr(ReasonInvalidHost, "invalid check url")
	}

	target, err := p.guard.ValidateTarget(ctx, currentURL)
	if err != nil {
		return nil, nil, "", 0, err
	}
	resolvedIP := target.ResolvedIP

	for hop := 0; hop <= MaxRedirects; hop++ {
		resp, err := p.requestHeadOrGet(ctx, currentURL, resolvedIP, check)
		if err != nil {
			return nil, nil, "", hop, err
		}

		if resp.statusCode < 300 || resp.statusCode >= 400 {
			return resp, resolvedIP, currentURL.String(), hop, nil
		}

		location := resp.header.Get("Location")
		if location == "" {
			return resp, resolvedIP, currentURL.String(), hop, nil
		}

		if hop >= MaxRedirects {
			return nil, nil, "", hop, newProbeErr(ReasonTooManyRedirects, "exceeded redirect limit")
		}

		nextURL, err := currentURL.Parse(location)
		if err != nil {
			return nil, nil, "", hop, newProbeErr(ReasonRedirectJoinFailed, "failed to resolve redirect location")
		}

		target, err = p.guard.ValidateTarget(ctx, nextURL)
		if err != nil {
			return nil, nil, "", hop, err
		}
		resolvedIP = target.ResolvedIP
		currentURL = nextURL
	}

	return nil, nil, "", MaxRedirects + 1, newProbeErr(ReasonTooManyRedirects, "exceeded redirect limit")
}

func (p *HTTPProbe) requestHeadOrGet(ctx context.Context, u *url.URL, resolvedIP net.IP, check *Check) (*cappedResponse, error) {
	if check.HTTPMethod == MethodGet {
		return p.requestGetCapped(ctx, u, resolvedIP, check)
	}

	headResp, err := p.do(ctx, http.MethodHead, u, resolvedIP, check)
	if err != nil {
		return nil, err
	}

	if err := guardContentLength(headResp.ContentLength); err != nil {
		headResp.Body.Close()
		return nil, err
	}

	bodyTruncated := headResp.ContentLength > MaxResponseBytes
	status := headResp.StatusCode
	header := headResp.Header.Clone()
	contentLength := headResp.ContentLength
	headResp.Body.Close()

	if !shouldFallbackToGet(status) {
		return &cappedResponse{
			statusCode:    status,
			header:        header,
			contentLength: contentLength,
			bodyTruncated: bodyTruncated,
			body:          io.NopCloser(nil),
		}, nil
	}

	return p.requestGetCapped(ctx, u, resolvedIP, check)
}

func (p *HTTPProbe) requestGetCapped(ctx context.Context, u *url.URL, resolvedIP net.IP, check *Check) (*cappedResponse, error) {
	resp, err := p.do(ctx, http.MethodGet, u, resolvedIP, check)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	header := resp.Header.Clone()

	if resp.ContentLength >= 0 {
		return &cappedResponse{
			statusCode:    status,
			header:        header,
			contentLength: resp.ContentLength,
			bodyTruncated: resp.ContentLength > MaxResponseBytes,
			body:          io.NopCloser(nil),
		}, nil
	}

	if status >= 300 && status < 400 {
		// Redirect bodies aren't useful; headers are all we need.
		return &cappedResponse{statusCode: status, header: header, contentLength: -1, body: io.NopCloser(nil)}, nil
	}

	n, readErr := io.CopyN(io.Discard, resp.Body, MaxResponseBytes+1)
	if readErr != nil && readErr != io.EOF {
		return nil, newProbeErr(ReasonHTTPBodyError, readErr.Error())
	}
	return &cappedResponse{
		statusCode:    status,
		header:        header,
		contentLength: n,
		bodyTruncated: n > MaxResponseBytes,
		body:          io.NopCloser(nil),
	}, nil
}

func (p *HTTPProbe) do(ctx context.Context, method string, u *url.URL, resolvedIP net.IP, check *Check) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	port := strconv.Itoa(portOrDefault(u))
	dialTarget := net.JoinHostPort(resolvedIP.String(), port)
	reqCtx = context.WithValue(reqCtx, dialTargetKey{}, dialTarget)

	req, err := http.NewRequestWithContext(reqCtx, method, u.String(), nil)
	if err != nil {
		return nil, newProbeErr(ReasonHTTPRequestError, err.Error())
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Host = u.Hostname()
	applyCustomHeaders(req, check.RequestHeaders)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newProbeErr(classifyTransportError(err), err.Error())
	}
	return resp, nil
}

func guardContentLength(contentLength int64) error {
	if contentLength > MaxResponseBytes {
		return newProbeErr(ReasonResponseTooLarge, "content-length exceeds limit")
	}
	return nil
}

func shouldFallbackToGet(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	default:
		return false
	}
}

func classifyTransportError(err error) ReasonCode {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonHTTPTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ReasonHTTPConnectError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ReasonHTTPBodyError
	}
	return ReasonHTTPError
}
