package fetch

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// tlsProfile pairs a browser family with the ClientHello it presents.
type tlsProfile struct {
	name     string
	clientID utls.ClientHelloID
}

var tlsProfiles = []tlsProfile{
	{name: "chrome", clientID: utls.HelloChrome_131},
	{name: "firefox", clientID: utls.HelloFirefox_120},
	{name: "edge", clientID: utls.HelloEdge_106},
}

// profileForUserAgent picks the ClientHello matching the job's user agent so
// the fetcher's TLS fingerprint agrees with the headers it sends.
func profileForUserAgent(userAgent string) tlsProfile {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "firefox"):
		return tlsProfiles[1]
	case strings.Contains(ua, "edg"):
		return tlsProfiles[2]
	default:
		return tlsProfiles[0]
	}
}

// NewTransport builds the fetcher's HTTP transport. When userAgent names a
// known browser family, TLS handshakes present that browser's ClientHello.
func NewTransport(userAgent string) *http.Transport {
	profile := profileForUserAgent(userAgent)

	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		conn := utls.UClient(raw, &utls.Config{ServerName: host}, profile.clientID)
		if err := conn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		return conn, nil
	}

	return transport
}
