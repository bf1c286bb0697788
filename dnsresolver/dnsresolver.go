// Package dnsresolver resolves preferred-peer hostnames to IPs and keeps
// them pinned across periodic re-resolution, the way the chain client
// needs peer weights to survive a DNS flip. IP resolution itself goes
// through miekg/dns so A and AAAA queries can be issued (and ordered)
// explicitly; rs/dnscache's Resolver is used as the cached system-DNS
// fallback when no explicit upstream server is configured, mirroring how
// a content gateway would rely on the OS resolver in the common case and
// only reach for a raw DNS client when it needs query-type control.
package dnsresolver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/liteseed/gatewaycore/log"
	"github.com/miekg/dns"
	"github.com/rs/dnscache"
)

// Config parametrizes a Resolver. DNSServer, when set, is a host:port
// used for explicit A/AAAA queries via miekg/dns; when empty, resolution
// falls back to the cached system resolver (rs/dnscache) with results
// partitioned by address family.
type Config struct {
	DNSServer       string
	QueryTimeout    time.Duration
	RefreshInterval time.Duration
}

// Resolution is the result of resolving one URL's hostname: the IPs
// found (IPv4 preferred, IPv6 only on IPv4 failure), and the URL
// rewritten to address the first IP, or left unchanged if resolution
// found nothing.
type Resolution struct {
	Hostname        string
	OriginalURL     string
	ResolvedURL     string
	IPs             []string
	ResolutionError error
}

// Resolver caches the most recent Resolution per hostname and can
// periodically refresh a caller-supplied set of URLs in the background.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*Resolution

	cfg           Config
	dnsClient     *dns.Client
	cacheResolver *dnscache.Resolver
	log           log.Logger
}

// New constructs a Resolver. A zero Config resolves via the system
// resolver with no periodic refresh.
func New(cfg Config) *Resolver {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return &Resolver{
		cache:         make(map[string]*Resolution),
		cfg:           cfg,
		dnsClient:     &dns.Client{Timeout: cfg.QueryTimeout},
		cacheResolver: &dnscache.Resolver{},
		log:           log.New("dnsresolver"),
	}
}

// ResolveURL resolves rawURL's hostname and caches the result keyed by
// hostname. An IP-literal host skips resolution entirely. Failure to
// resolve is reported in ResolutionError rather than as a return error —
// callers fall back to the original URL, per contract.
func (r *Resolver) ResolveURL(ctx context.Context, rawURL string) (*Resolution, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing url %q: %v", gatewayerr.ErrMalformedResponse, rawURL, err)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("%w: url %q has no hostname", gatewayerr.ErrMalformedResponse, rawURL)
	}

	if net.ParseIP(hostname) != nil {
		res := &Resolution{Hostname: hostname, OriginalURL: rawURL, ResolvedURL: rawURL, IPs: []string{hostname}}
		r.store(hostname, res)
		return res, nil
	}

	ips, resErr := r.lookupPreferOrder(ctx, hostname)
	resolvedURL := rawURL
	if resErr == nil && len(ips) > 0 {
		resolvedURL = rewriteHost(u, ips[0])
	}
	res := &Resolution{
		Hostname:        hostname,
		OriginalURL:     rawURL,
		ResolvedURL:     resolvedURL,
		IPs:             ips,
		ResolutionError: resErr,
	}
	r.store(hostname, res)
	return res, nil
}

// lookupPreferOrder tries A records first, falling back to AAAA only if
// the A query fails or returns nothing.
func (r *Resolver) lookupPreferOrder(ctx context.Context, hostname string) ([]string, error) {
	ips, errA := r.queryType(ctx, hostname, dns.TypeA)
	if errA == nil && len(ips) > 0 {
		return ips, nil
	}
	ips6, errAAAA := r.queryType(ctx, hostname, dns.TypeAAAA)
	if errAAAA == nil && len(ips6) > 0 {
		return ips6, nil
	}
	if errA != nil {
		return nil, errA
	}
	return nil, errAAAA
}

func (r *Resolver) queryType(ctx context.Context, hostname string, qtype uint16) ([]string, error) {
	if r.cfg.DNSServer == "" {
		return r.lookupViaSystemResolver(ctx, hostname, qtype)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(hostname), qtype)
	in, _, err := r.dnsClient.ExchangeContext(ctx, m, r.cfg.DNSServer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}

	ips := make([]string, 0, len(in.Answer))
	for _, rr := range in.Answer {
		switch a := rr.(type) {
		case *dns.A:
			ips = append(ips, a.A.String())
		case *dns.AAAA:
			ips = append(ips, a.AAAA.String())
		}
	}
	if len(ips) == 0 {
		return nil, gatewayerr.ErrNotFound
	}
	return ips, nil
}

func (r *Resolver) lookupViaSystemResolver(ctx context.Context, hostname string, qtype uint16) ([]string, error) {
	all, err := r.cacheResolver.LookupHost(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrTransport, err)
	}
	filtered := make([]string, 0, len(all))
	for _, ip := range all {
		isV4 := net.ParseIP(ip) != nil && net.ParseIP(ip).To4() != nil
		if (qtype == dns.TypeA) == isV4 {
			filtered = append(filtered, ip)
		}
	}
	if len(filtered) == 0 {
		return nil, gatewayerr.ErrNotFound
	}
	return filtered, nil
}

func (r *Resolver) store(hostname string, res *Resolution) {
	r.mu.Lock()
	r.cache[hostname] = res
	r.mu.Unlock()
}

// GetResolvedURL returns the cached Resolution for hostname, if any.
func (r *Resolver) GetResolvedURL(hostname string) (*Resolution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.cache[hostname]
	return res, ok
}

// GetResolvedURLStrings rewrites each URL in urls to its cached resolved
// form where a successful resolution is cached, leaving the original URL
// unchanged otherwise.
func (r *Resolver) GetResolvedURLStrings(urls []string) []string {
	out := make([]string, len(urls))
	for i, raw := range urls {
		out[i] = raw
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		res, ok := r.GetResolvedURL(u.Hostname())
		if ok && res.ResolutionError == nil && len(res.IPs) > 0 {
			out[i] = res.ResolvedURL
		}
	}
	return out
}

// Start launches periodic re-resolution of the hostnames urls() returns
// at each tick, stopping when ctx is canceled. RefreshInterval <= 0
// disables the loop: callers resolve only on demand via ResolveURL.
func (r *Resolver) Start(ctx context.Context, urls func() []string) {
	if r.cfg.RefreshInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, u := range urls() {
					if _, err := r.ResolveURL(ctx, u); err != nil {
						r.log.Warn("periodic DNS re-resolution failed", "url", u, "err", err)
					}
				}
			}
		}
	}()
}

func rewriteHost(u *url.URL, ip string) string {
	out := *u
	if port := u.Port(); port != "" {
		out.Host = net.JoinHostPort(ip, port)
	} else {
		out.Host = ip
	}
	return out.String()
}
