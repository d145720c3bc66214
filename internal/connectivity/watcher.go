package connectivity

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// DefaultCheckInterval is how often [InterfaceWatcher] inspects the network
// interfaces.
const DefaultCheckInterval = 5 * time.Second

// InterfaceLister returns the machine's network interfaces with their
// addresses. The production implementation wraps [net.Interfaces].
type InterfaceLister func() ([]Interface, error)

// Interface is the subset of interface state the watcher cares about.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	HasAddr  bool
}

// InterfaceWatcher feeds a [Monitor] from local interface state: the machine
// counts as online when at least one non-loopback interface is up and has an
// address. No traffic is sent anywhere.
type InterfaceWatcher struct {
	monitor  *Monitor
	list     InterfaceLister
	interval time.Duration
	log      *slog.Logger
}

// NewInterfaceWatcher creates a watcher that updates monitor. A nil list uses
// the system interfaces; a zero interval uses [DefaultCheckInterval].
func NewInterfaceWatcher(monitor *Monitor, list InterfaceLister, interval time.Duration, logger *slog.Logger) *InterfaceWatcher {
	if list == nil {
		list = SystemInterfaces
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &InterfaceWatcher{monitor: monitor, list: list, interval: interval, log: logger}
}

// Check inspects the interfaces once and updates the monitor. Listing errors
// leave the signal unchanged.
func (w *InterfaceWatcher) Check() {
	ifaces, err := w.list()
	if err != nil {
		w.log.Debug("listing network interfaces", "error", err)
		return
	}
	w.monitor.SetOnline(anyUsable(ifaces))
}

// Run checks immediately and then on every tick until ctx is cancelled.
func (w *InterfaceWatcher) Run(ctx context.Context) {
	w.Check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

func anyUsable(ifaces []Interface) bool {
	for _, i := range ifaces {
		if i.Up && !i.Loopback && i.HasAddr {
			return true
		}
	}
	return false
}

// SystemInterfaces lists the host's interfaces via the net package.
func SystemInterfaces() ([]Interface, error) {
	nifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(nifs))
	for _, ni := range nifs {
		addrs, _ := ni.Addrs()
		out = append(out, Interface{
			Name:     ni.Name,
			Up:       ni.Flags&net.FlagUp != 0,
			Loopback: ni.Flags&net.FlagLoopback != 0,
			HasAddr:  len(addrs) > 0,
		})
	}
	return out, nil
}
