package transfer

import (
	"context"
	"time"

	"github.com/rchlabs/rch/rchapi"
	"github.com/rchlabs/rch/transfer/transport"
)

// Prober implements worker.Prober over a transport.Transport: a health
// probe is a Dial plus a Preflight with no required tools, reporting the
// agent's free-slot count back to the health loop.
type Prober struct {
	Transport transport.Transport
}

func (p Prober) Probe(ctx context.Context, w rchapi.Worker, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := p.Transport.Dial(ctx, w)
	if err != nil {
		return 0, err
	}
	defer func() { _ = sess.Close() }()

	res, err := sess.Preflight(ctx, nil)
	if err != nil {
		return 0, err
	}
	return res.FreeSlots, nil
}
