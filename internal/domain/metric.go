// Package domain contains pure business types with ZERO infrastructure
// imports — the innermost ring of the codebase. ESM, UQ, EM, APS and RFU
// all depend on this package; it depends on nothing in this module.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Metric identifies one of the four tracked health dimensions of an entity.
type Metric string

const (
	MetricLiveness  Metric = "liveness"
	MetricRTT       Metric = "rtt"
	MetricPLR       Metric = "plr"
	MetricBandwidth Metric = "bandwidth"
)

// Metrics is the fixed, ordered enumeration of all tracked metrics.
// Every entity gets exactly one EntityState per entry (invariant P1).
var Metrics = []Metric{MetricLiveness, MetricRTT, MetricPLR, MetricBandwidth}

// Family identifies which posterior distribution a metric uses.
type Family int

const (
	FamilyBeta Family = iota
	FamilyGaussian
)

// FamilyOf returns the distribution family for a metric.
func FamilyOf(m Metric) Family {
	if m == MetricLiveness {
		return FamilyBeta
	}
	return FamilyGaussian
}

// EntityID is the canonical identity of an observed network entity — a
// directed link endpoint pair, "{src_dpid}-{src_port}:{dst_dpid}-{dst_port}".
type EntityID string

// LinkID formats the canonical directed-link entity identifier.
func LinkID(srcDPID, srcPort, dstDPID, dstPort uint64) EntityID {
	return EntityID(fmt.Sprintf("%d-%d:%d-%d", srcDPID, srcPort, dstDPID, dstPort))
}

// LinkEndpoints is a parsed directed link entity ID.
type LinkEndpoints struct {
	SrcDPID, SrcPort, DstDPID, DstPort uint64
}

// ParseLinkID parses the canonical "{src_dpid}-{src_port}:{dst_dpid}-{dst_port}"
// format. The core is entity-type-agnostic (spec.md §3); this parser exists
// for collaborators (topology, probe executors) that need the endpoints back.
func ParseLinkID(id EntityID) (LinkEndpoints, error) {
	parts := strings.SplitN(string(id), ":", 2)
	if len(parts) != 2 {
		return LinkEndpoints{}, fmt.Errorf("domain: malformed entity id %q: missing ':'", id)
	}
	src, err := parseEndpoint(parts[0])
	if err != nil {
		return LinkEndpoints{}, fmt.Errorf("domain: malformed entity id %q: src: %w", id, err)
	}
	dst, err := parseEndpoint(parts[1])
	if err != nil {
		return LinkEndpoints{}, fmt.Errorf("domain: malformed entity id %q: dst: %w", id, err)
	}
	return LinkEndpoints{SrcDPID: src[0], SrcPort: src[1], DstDPID: dst[0], DstPort: dst[1]}, nil
}

func parseEndpoint(s string) ([2]uint64, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return [2]uint64{}, fmt.Errorf("missing '-' in %q", s)
	}
	dpid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return [2]uint64{}, fmt.Errorf("dpid: %w", err)
	}
	port, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return [2]uint64{}, fmt.Errorf("port: %w", err)
	}
	return [2]uint64{dpid, port}, nil
}
