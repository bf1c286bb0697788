package dnsresolver

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zone struct {
	a    []string
	aaaa []string
}

func startTestDNSServer(t *testing.T, zones map[string]zone) (addr string) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if len(req.Question) == 1 {
			q := req.Question[0]
			z := zones[q.Name]
			var ips []string
			typ := "A"
			if q.Qtype == dns.TypeAAAA {
				typ = "AAAA"
				ips = z.aaaa
			} else if q.Qtype == dns.TypeA {
				ips = z.a
			}
			for _, ip := range ips {
				rr, err := dns.NewRR(fmt.Sprintf("%s 60 IN %s %s", q.Name, typ, ip))
				if err == nil {
					m.Answer = append(m.Answer, rr)
				}
			}
		}
		_ = w.WriteMsg(m)
	})

	server := &dns.Server{PacketConn: pc, Handler: handler}
	go server.ActivateAndServe()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})
	return pc.LocalAddr().String()
}

func TestResolveURLIPLiteralSkipsResolution(t *testing.T) {
	r := New(Config{})
	res, err := r.ResolveURL(context.Background(), "http://127.0.0.1:1984/foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, res.IPs)
	assert.Equal(t, "http://127.0.0.1:1984/foo", res.ResolvedURL)
	assert.NoError(t, res.ResolutionError)
}

func TestResolveURLPrefersIPv4(t *testing.T) {
	addr := startTestDNSServer(t, map[string]zone{
		"a.example.test.": {a: []string{"10.0.0.5"}, aaaa: []string{"::1"}},
	})
	r := New(Config{DNSServer: addr, QueryTimeout: 2 * time.Second})

	res, err := r.ResolveURL(context.Background(), "http://a.example.test:1984/x")
	require.NoError(t, err)
	require.NoError(t, res.ResolutionError)
	assert.Equal(t, []string{"10.0.0.5"}, res.IPs)
	assert.Equal(t, "http://10.0.0.5:1984/x", res.ResolvedURL)
}

func TestResolveURLFallsBackToIPv6WhenNoARecords(t *testing.T) {
	addr := startTestDNSServer(t, map[string]zone{
		"aaaa.example.test.": {aaaa: []string{"2001:db8::1"}},
	})
	r := New(Config{DNSServer: addr, QueryTimeout: 2 * time.Second})

	res, err := r.ResolveURL(context.Background(), "http://aaaa.example.test:1984/x")
	require.NoError(t, err)
	require.NoError(t, res.ResolutionError)
	assert.Equal(t, []string{"2001:db8::1"}, res.IPs)
	assert.Equal(t, "http://[2001:db8::1]:1984/x", res.ResolvedURL)
}

func TestResolveURLNoRecordsLeavesURLUnchangedAndSetsError(t *testing.T) {
	addr := startTestDNSServer(t, map[string]zone{})
	r := New(Config{DNSServer: addr, QueryTimeout: 2 * time.Second})

	res, err := r.ResolveURL(context.Background(), "http://nowhere.example.test:1984/x")
	require.NoError(t, err)
	assert.Error(t, res.ResolutionError)
	assert.Empty(t, res.IPs)
	assert.Equal(t, "http://nowhere.example.test:1984/x", res.ResolvedURL)
}

func TestGetResolvedURLStringsUsesCacheOrFallsBackToOriginal(t *testing.T) {
	addr := startTestDNSServer(t, map[string]zone{
		"a.example.test.": {a: []string{"10.0.0.5"}},
	})
	r := New(Config{DNSServer: addr, QueryTimeout: 2 * time.Second})

	_, err := r.ResolveURL(context.Background(), "http://a.example.test:1984/x")
	require.NoError(t, err)

	out := r.GetResolvedURLStrings([]string{
		"http://a.example.test:1984/x",
		"http://never-resolved.example.test:1984/y",
	})
	assert.Equal(t, "http://10.0.0.5:1984/x", out[0])
	assert.Equal(t, "http://never-resolved.example.test:1984/y", out[1])
}

func TestStartPeriodicRefreshInvokesResolveURL(t *testing.T) {
	addr := startTestDNSServer(t, map[string]zone{
		"a.example.test.": {a: []string{"10.0.0.5"}},
	})
	r := New(Config{DNSServer: addr, QueryTimeout: 2 * time.Second, RefreshInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx, func() []string { return []string{"http://a.example.test:1984/x"} })

	time.Sleep(80 * time.Millisecond)
	cancel()

	res, ok := r.GetResolvedURL("a.example.test")
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.5"}, res.IPs)
}
