package comm

import (
	"context"
	"sync"
)

// Client pairs requests with responses over a dispatcher's queues. It must be the only
// reader of the output queue.
type Client struct {
	in  chan<- Command
	out <-chan Result

	mu sync.Mutex
	// replies of cancelled calls still owed by the dispatcher
	orphans int
}

func NewClient(in chan<- Command, out <-chan Result) *Client {
	return &Client{in: in, out: out}
}

// Do enqueues cmd and waits for its result. If ctx ends after the command was queued,
// the next call reads and discards the late reply before sending its own command.
func (c *Client) Do(ctx context.Context, cmd Command) (Result, error) {
	if !cmd.action.valid() {
		return Result{}, &ProtocolError{Reason: "invalid action", Action: cmd.action.String(), Content: cmd.symbol.String()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// the worker can't take new commands while a late reply is unread
	for c.orphans > 0 {
		select {
		case _, ok := <-c.out:
			if !ok {
				return Result{}, ErrStopped
			}
			c.orphans--
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	select {
	case c.in <- cmd:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res, ok := <-c.out:
		if !ok {
			return Result{}, ErrStopped
		}
		return res, nil
	case <-ctx.Done():
		c.orphans++
		return Result{}, ctx.Err()
	}
}

// DoDescriptor validates d and runs it.
func (c *Client) DoDescriptor(ctx context.Context, d Descriptor) (Result, error) {
	cmd, err := d.Command()
	if err != nil {
		return Result{}, err
	}
	return c.Do(ctx, cmd)
}
