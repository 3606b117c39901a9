package httpprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// CheckResolver sends a single NS query for the root zone to resolver
// (host:port). Any answer, including an error rcode, proves the network path
// works.
func CheckResolver(ctx context.Context, resolver string, timeout time.Duration) error {
	msg := new(dns.Msg)
	msg.SetQuestion(".", dns.TypeNS)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, _, err := client.ExchangeContext(ctx, msg, resolver)
	if err != nil {
		return fmt.Errorf("querying %s: %w", resolver, err)
	}
	if resp == nil {
		return fmt.Errorf("no response from %s", resolver)
	}
	return nil
}
