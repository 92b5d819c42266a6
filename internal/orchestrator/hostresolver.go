package orchestrator

import (
	"context"
	"fmt"
)

// StaticHostResolver is the stub HostResolver this gateway ships with: a
// fixed table of host_id -> HostInfo, configured once at startup. Host
// discovery, pairing, and certificate issuance are out of scope (they live
// behind this same interface in a real deployment); this implementation
// exists so the orchestrator's wiring is complete and testable without
// pulling in any of that.
type StaticHostResolver struct {
	hosts map[string]HostInfo
}

// NewStaticHostResolver builds a resolver over a fixed host table.
func NewStaticHostResolver(hosts map[string]HostInfo) *StaticHostResolver {
	return &StaticHostResolver{hosts: hosts}
}

// Resolve looks hostID up in the static table. appID is accepted but
// unused: this stub has no per-app launch routing, only per-host identity.
func (r *StaticHostResolver) Resolve(_ context.Context, hostID string, _ uint32) (HostInfo, error) {
	host, ok := r.hosts[hostID]
	if !ok {
		return HostInfo{}, fmt.Errorf("orchestrator: unknown host %q", hostID)
	}
	return host, nil
}
