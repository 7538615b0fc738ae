package provider

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

// rateLimitedTransport waits on a shared token bucket before each request
// that reaches the network.
type rateLimitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// NewHTTPClient builds the client shared by the provider adapters:
//  1. httpcache (conditional requests; cache hits skip the limiter). Window
//     fetches opt out per request and always reach upstream.
//  2. a token bucket of requestsPerSecond (unlimited when <= 0)
//  3. http.DefaultTransport
func NewHTTPClient(requestsPerSecond float64, timeout time.Duration) *http.Client {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}

	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = &rateLimitedTransport{
		limiter: rate.NewLimiter(limit, burst),
		next:    http.DefaultTransport,
	}

	return &http.Client{Transport: cache, Timeout: timeout}
}
