// Package dnscheck asks a resolver about hosts that could not be reached, so a
// lapsed registration (NXDOMAIN) can be told apart from a site that is down.
package dnscheck

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Checker sends single A queries to one resolver
type Checker struct {
	server string
	client *dns.Client
}

// New creates a checker for server ("host" or "host:port", port 53 by default)
func New(server string, timeout time.Duration) *Checker {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Checker{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// Probe returns the response code name for host, e.g. "NOERROR" or "NXDOMAIN".
// Any port on host is ignored and IP literals always answer "NOERROR".
func (c *Checker) Probe(ctx context.Context, host string) (string, error) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if net.ParseIP(host) != nil {
		return dns.RcodeToString[dns.RcodeSuccess], nil
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, m, c.server)
	if err != nil {
		return "", fmt.Errorf("DNS lookup for %s failed: %w", host, err)
	}

	rcode, ok := dns.RcodeToString[resp.Rcode]
	if !ok {
		rcode = fmt.Sprintf("RCODE%d", resp.Rcode)
	}
	return rcode, nil
}
