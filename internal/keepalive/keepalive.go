package keepalive

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"
)

// Run pings url every interval until ctx is cancelled. Failures are
// logged and never fatal: the loop exists to keep free-tier hosts from
// idling the service out, nothing depends on it.
func Run(ctx context.Context, client *http.Client, url string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[keepalive] pinging %s every %s", url, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping(ctx, client, url)
		}
	}
}

func ping(ctx context.Context, client *http.Client, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("[keepalive] build request: %v", err)
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[keepalive] ping failed: %v", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[keepalive] ping returned %d", resp.StatusCode)
	}
}
