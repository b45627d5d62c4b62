package adapters

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	NetLinkDefaultProbeTimeout  = 2 * time.Second
	NetLinkDefaultProbeInterval = 5 * time.Second
)

type NetLinkParams struct {
	// Interface, when set, must be up and carry an address.
	Interface string
	// ProbeAddress, when set, must accept a TCP connection.
	ProbeAddress string

	ProbeTimeout  time.Duration
	ProbeInterval time.Duration

	DialFunc      func(ctx context.Context, network, address string) (net.Conn, error)
	InterfaceFunc func(name string) (up bool, err error)

	Log zerolog.Logger
}

func (p *NetLinkParams) EnsureDefaults() {
	if p.ProbeTimeout == 0 {
		p.ProbeTimeout = NetLinkDefaultProbeTimeout
	}
	if p.ProbeInterval == 0 {
		p.ProbeInterval = NetLinkDefaultProbeInterval
	}
	if p.DialFunc == nil {
		p.DialFunc = (&net.Dialer{}).DialContext
	}
	if p.InterfaceFunc == nil {
		p.InterfaceFunc = interfaceUp
	}
}

// NetLink reports the host network as the node link. A healthy result is
// cached for ProbeInterval so the control loop does not dial every tick.
// The probe address should be a link-local target such as the gateway,
// never the broker: an unreachable broker is a session failure.
type NetLink struct {
	params NetLinkParams

	mu        sync.Mutex
	lastProbe time.Time
	lastUp    bool

	log zerolog.Logger
}

func NewNetLink(params NetLinkParams) *NetLink {
	params.EnsureDefaults()
	return &NetLink{params: params, log: params.Log}
}

func (l *NetLink) Associate(ctx context.Context) error {
	l.mu.Lock()
	l.lastProbe = time.Time{}
	l.mu.Unlock()

	l.log.Info().
		Str("interface", l.params.Interface).
		Str("probe", l.params.ProbeAddress).
		Msg("associating")
	return nil
}

func (l *NetLink) IsUp(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// only a healthy link is cached, a down link is probed on every poll
	if l.lastUp && !l.lastProbe.IsZero() && time.Since(l.lastProbe) < l.params.ProbeInterval {
		return true
	}

	up := l.probe(ctx)
	if up != l.lastUp {
		l.log.Info().Bool("up", up).Msg("link state changed")
	}
	l.lastUp = up
	l.lastProbe = time.Now()
	return up
}

func (l *NetLink) probe(ctx context.Context) bool {
	if l.params.Interface != "" {
		up, err := l.params.InterfaceFunc(l.params.Interface)
		if err != nil {
			l.log.Debug().Err(err).Str("interface", l.params.Interface).Msg("interface lookup failed")
			return false
		}
		if !up {
			return false
		}
	}

	if l.params.ProbeAddress != "" {
		dialCtx, cancel := context.WithTimeout(ctx, l.params.ProbeTimeout)
		defer cancel()

		conn, err := l.params.DialFunc(dialCtx, "tcp", l.params.ProbeAddress)
		if err != nil {
			l.log.Debug().Err(err).Str("address", l.params.ProbeAddress).Msg("probe failed")
			return false
		}
		_ = conn.Close()
	}
	return true
}

func interfaceUp(name string) (bool, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false, err
	}
	if iface.Flags&net.FlagUp == 0 {
		return false, nil
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return false, err
	}
	return len(addrs) > 0, nil
}
