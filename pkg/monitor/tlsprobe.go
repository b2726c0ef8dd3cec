package monitor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const TLSWarnDays = 14

// TLSProbe performs a direct TLS handshake against a check's host:443 and
// extracts the leaf certificate's expiry, bypassing the HTTP client
// entirely (no request is sent once the handshake completes).
type TLSProbe struct {
	guard *Guard
}

// NewTLSProbe builds a TLSProbe bound to guard.
func NewTLSProbe(guard *Guard) *TLSProbe {
	return &TLSProbe{guard: guard}
}

// Run executes the guarded TLS probe for check and returns a neutral
// Outcome using warnDays as the expiring-soon threshold.
func (p *TLSProbe) Run(ctx context.Context, check *Check, warnDays int) Outcome {
	start := time.Now()

	u, err := url.Parse(check.URL)
	if err != nil || u.Scheme != "https" {
		return Outcome{Success: false, Status: StatusFailed, ReasonCode: ReasonSchemeBlocked, Latency: time.Since(start)}
	}

	target, err := p.guard.ValidateTarget(ctx, u)
	if err != nil {
		var gerr *GuardError
		reason := ReasonTLSHandshakeFailed
		if errors.As(err, &gerr) {
			reason = gerr.Reason
		}
		return Outcome{Success: false, Status: StatusFailed, ReasonCode: reason, Latency: time.Since(start)}
	}

	notAfter, err := p.handshakeNotAfter(ctx, u, target.ResolvedIP, check.Timeout())
	latency := time.Since(start)
	if err != nil {
		var perr *probeError
		reason := ReasonTLSHandshakeFailed
		if errors.As(err, &perr) {
			reason = perr.reason
		}
		return Outcome{Success: false, Status: StatusFailed, ReasonCode: reason, Latency: latency}
	}

	daysLeft := int(time.Until(notAfter).Hours() / 24)
	status, reason := classifyTLSDaysLeft(daysLeft, warnDays)

	return Outcome{
		Success:     status != StatusFailed,
		Status:      status,
		ReasonCode:  reason,
		Latency:     latency,
		ResolvedIP:  target.ResolvedIP.String(),
		TLSNotAfter: notAfter,
		TLSDaysLeft: daysLeft,
		HasTLSInfo:  true,
	}
}

func (p *TLSProbe) handshakeNotAfter(ctx context.Context, u *url.URL, resolvedIP net.IP, timeout time.Duration) (time.Time, error) {
	host := u.Hostname()
	if host == "" {
		return time.Time{}, newProbeErr(ReasonInvalidHost, "missing host for tls")
	}
	port := portOrDefault(u)
	if port == 0 {
		port = 443
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{}
	addr := net.JoinHostPort(resolvedIP.String(), strconv.Itoa(port))
	rawConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return time.Time{}, newProbeErr(ReasonTLSHandshakeFailed, fmt.Sprintf("tcp connect: %v", err))
	}
	defer rawConn.Close()

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = rawConn.SetDeadline(deadline)
	}

	conn := tls.Client(rawConn, &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	})
	if err := conn.HandshakeContext(dialCtx); err != nil {
		return time.Time{}, newProbeErr(ReasonTLSHandshakeFailed, fmt.Sprintf("tls handshake: %v", err))
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return time.Time{}, newProbeErr(ReasonTLSMissingCert, "no peer certificates")
	}

	leaf := certs[0]
	parsed, err := x509.ParseCertificate(leaf.Raw)
	if err != nil {
		return time.Time{}, newProbeErr(ReasonTLSParseError, fmt.Sprintf("parse cert failed: %v", err))
	}

	return parsed.NotAfter, nil
}
