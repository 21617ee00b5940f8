//go:build !linux

package collector

import (
	"context"
	"errors"

	"github.com/jeffypooo/apptop/internal/snapshot"
)

var errUnsupported = errors.New("process collector requires linux")

// Collector is a placeholder on non-Linux platforms.
type Collector struct{}

func New(tickRate uint64) *Collector {
	return &Collector{}
}

// Sample always fails on unsupported platforms.
func (c *Collector) Sample(ctx context.Context) ([]snapshot.Sample, error) {
	return nil, errUnsupported
}
