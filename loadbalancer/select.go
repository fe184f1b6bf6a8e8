// Package loadbalancer implements the Backend Selector of §4.5: weighted
// selection over a route's backend set via cumulative weight bands,
// grounded on the teacher's loadbalancer package's provider-over-routes
// shape, simplified to this spec's single weighted-random algorithm (no
// round-robin/consistent-hash state to carry across requests is in scope
// here).
package loadbalancer

import (
	"math/rand"

	"github.com/agentgateway/agentgateway/gatewayerr"
	"github.com/agentgateway/agentgateway/model"
)

// Selector performs weighted random backend selection. The zero value is
// not usable; construct with New.
type Selector struct {
	intn func(n int) int
}

// New constructs a Selector. intn draws a uniform integer in [0, n); pass
// nil to use math/rand.Intn. Tests inject a fixed draw to exercise exact
// selection bands (scenario 4, §8).
func New(intn func(n int) int) *Selector {
	if intn == nil {
		intn = rand.Intn
	}
	return &Selector{intn: intn}
}

// Select picks the backend whose cumulative weight band contains a uniform
// draw over [0, Σweights). Zero total weight (including an empty backend
// set) is NoBackend per §4.5.
func (s *Selector) Select(backends []model.RouteBackend) (*model.RouteBackend, *gatewayerr.Error) {
	total := 0
	for _, b := range backends {
		total += b.Weight
	}
	if total <= 0 {
		return nil, gatewayerr.New(gatewayerr.NoBackend)
	}

	draw := s.intn(total)
	cum := 0
	for i := range backends {
		if backends[i].Weight == 0 {
			continue
		}
		cum += backends[i].Weight
		if draw < cum {
			return &backends[i], nil
		}
	}
	return nil, gatewayerr.New(gatewayerr.InternalError)
}
