// Package discovery advertises and finds whiteboard servers on the LAN over
// mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const DefaultService = "_whiteboard._tcp"

// Endpoint is one server found on the network.
type Endpoint struct {
	Instance string
	Addr     string
	Info     []string
}

// URL is the websocket address of the endpoint.
func (e Endpoint) URL() string {
	return "ws://" + e.Addr + "/api/ws"
}

// Advertise announces the server until the returned server is shut down.
// An empty instance uses the hostname.
func Advertise(instance, service string, port int) (*mdns.Server, error) {
	if service == "" {
		service = DefaultService
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	zone, err := mdns.NewMDNSService(instance, service, "", "", port, nil, []string{"Whiteboard", "path=/api/ws"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Info().Str("module", "discovery").Str("instance", instance).Str("service", service).Int("port", port).Msg("advertising")
	return server, nil
}

// Browse queries the network for timeout, or until ctx's deadline if that is
// sooner, and returns what answered.
func Browse(ctx context.Context, service string, timeout time.Duration) ([]Endpoint, error) {
	if service == "" {
		service = DefaultService
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	var (
		mu    sync.Mutex
		found []Endpoint
		wg    sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range entries {
			ep, ok := fromEntry(e)
			if !ok {
				continue
			}
			mu.Lock()
			found = append(found, ep)
			mu.Unlock()
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("mdns query %s: %w", service, err)
	}
	log.Debug().Str("module", "discovery").Str("service", service).Int("found", len(found)).Msg("browse done")
	return dedupe(found), nil
}

func fromEntry(e *mdns.ServiceEntry) (Endpoint, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Endpoint{}, false
	}
	return Endpoint{
		Instance: e.Name,
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
		Info:     e.InfoFields,
	}, true
}

func dedupe(in []Endpoint) []Endpoint {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, ep := range in {
		if _, ok := seen[ep.Addr]; ok {
			continue
		}
		seen[ep.Addr] = struct{}{}
		out = append(out, ep)
	}
	return out
}
