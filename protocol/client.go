package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"go-cvseq/sequencer"
)

// DefaultClientTimeout applies when ctx has no deadline
const DefaultClientTimeout = 2 * time.Second

// maxResponseSize bounds how much of a reply the client reads
const maxResponseSize = 64 * 1024

// Send opens a connection to addr, sends req and returns the reply.
func Send(ctx context.Context, addr string, req Request) (Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultClientTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	// the server closes the connection after replying
	data, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// SendCommand is Send for a sequencer command
func SendCommand(ctx context.Context, addr string, cmd sequencer.Command) (Response, error) {
	return Send(ctx, addr, NewRequest(cmd))
}

// Remote is a sequencer address usable as a command client
type Remote string

func (r Remote) Send(ctx context.Context, cmd sequencer.Command) (Response, error) {
	return SendCommand(ctx, string(r), cmd)
}
