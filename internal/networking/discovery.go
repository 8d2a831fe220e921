package networking

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const ZeroconfService = "_audiorelay._tcp"
const zeroconfDomain = "local."

// Advertise publishes the relay server over mDNS until the returned func is called.
func Advertise(listenAddr string, relayPath string) (func(), error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse listen address %q", listenAddr)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse port %q", portStr)
	}
	host, _ := os.Hostname()
	name := fmt.Sprintf("audiorelay-%s", host)
	txt := []string{"path=/ws", fmt.Sprintf("relay=%s", relayPath)}

	server, err := zeroconf.Register(name, ZeroconfService, zeroconfDomain, port, txt, nil)
	if err != nil {
		return nil, errors.Wrap(err, "mdns register failed")
	}
	log.Info().Str("name", name).Str("service", ZeroconfService).Int("port", port).Msg("mdns: advertised relay server")
	return server.Shutdown, nil
}

// Discover browses mDNS until ctx ends and returns the websocket URL of the first relay server found.
func Discover(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", errors.Wrap(err, "cannot create mdns resolver")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ZeroconfService, zeroconfDomain, entries); err != nil {
		return "", errors.Wrap(err, "mdns browse failed")
	}
	for {
		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "no relay server found")
		case entry, ok := <-entries:
			if !ok {
				return "", errors.New("no relay server found")
			}
			url, found := entryURL(entry)
			if !found {
				continue
			}
			log.Info().Str("instance", entry.Instance).Str("url", url).Msg("mdns: found relay server")
			return url, nil
		}
	}
}

func entryURL(entry *zeroconf.ServiceEntry) (string, bool) {
	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0]
	} else {
		return "", false
	}
	path := "/ws"
	for _, t := range entry.Text {
		if len(t) > 5 && t[:5] == "path=" {
			path = t[5:]
		}
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(ip.String(), fmt.Sprint(entry.Port)), path), true
}
