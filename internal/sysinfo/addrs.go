package sysinfo

import (
	"net"
	"strings"

	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// LocalAddrs returns the host's IPv4 addresses used for traffic direction
// classification. iface restricts the result to one interface; "any" or ""
// enumerates all interfaces. Loopback addresses are excluded.
func LocalAddrs(iface string) ([]string, error) {
	ifaces, err := gopsnet.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, ifc := range ifaces {
		if iface != "" && iface != "any" && ifc.Name != iface {
			continue
		}
		for _, addr := range ifc.Addrs {
			// Addresses come as CIDR ("10.0.0.9/24") or bare IPs.
			raw := addr.Addr
			if i := strings.IndexByte(raw, '/'); i >= 0 {
				raw = raw[:i]
			}
			ip := net.ParseIP(raw)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			addrs = append(addrs, ip.String())
		}
	}
	return addrs, nil
}
