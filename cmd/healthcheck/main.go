// Command healthcheck probes the running marginalia server's health endpoint.
// It exits 0 when the server responds 200 and nonzero otherwise, making it
// suitable as a container HEALTHCHECK.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	if !probe(healthURL(os.Getenv("MARGINALIA_LISTEN_ADDR"))) {
		os.Exit(1)
	}
}

func probe(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// healthURL maps the server's listen address onto a loopback probe URL. The
// server typically binds 0.0.0.0 inside a container, but the probe runs in the
// same container, so loopback is the address that is actually reachable.
func healthURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/v1/health"
}
