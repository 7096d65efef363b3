// Package dbgp implements the DBGp protocol client: transaction-id
// bookkeeping, command issue, and reply type-checking against the
// command that was sent. See spec §4.C.
package dbgp

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
	"github.com/marmos91/dbgpfront/internal/logger"
	"github.com/marmos91/dbgpfront/internal/wire"
)

// Client owns one DBGp transport and serializes every command/reply
// pair across it. A Client is safe for concurrent use; only one
// in-flight request is ever allowed (spec §5 "single exclusive lock
// around the protocol client").
type Client struct {
	mu         sync.Mutex
	framer     *wire.Framer
	stream     io.ReadWriter
	tid        atomic.Int64
	disconnect bool
}

// writeCloser is satisfied by transports that can half-close their
// write side without tearing down the read side (e.g. *net.TCPConn).
type writeCloser interface {
	CloseWrite() error
}

// New constructs a Client around an already-accepted transport. It
// does not read anything until Connect is called.
func New() *Client {
	return &Client{}
}

// Connect binds stream as the client's transport, reads the first
// frame, and requires it to be an Init message.
func (c *Client) Connect(stream io.ReadWriter) (*xml.Init, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.framer = wire.New(stream)
	c.stream = stream
	payload, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}

	decoded, err := xml.Decode(payload)
	if err != nil {
		return nil, err
	}
	init, ok := decoded.(*xml.Init)
	if !ok {
		return nil, protocolErrorf("expected init message, got %T", decoded)
	}

	logger.Debug("dbgp connected", logger.Filename(init.FileURI))
	return init, nil
}

// FeatureSet issues feature_set and requires an Unknown-body
// acknowledgment (the decoder gives feature_set replies no typed
// treatment; their only observable is success/failure, conveyed out of
// band by the transport error, if any).
func (c *Client) FeatureSet(name, value string) error {
	resp, err := c.issue("feature_set", "-n", name, "-v", value)
	if err != nil {
		return err
	}
	if resp.Unknown == nil {
		return protocolErrorf("feature_set: expected acknowledgment, got variant on command %q", resp.Command)
	}
	return nil
}

// FeatureGet issues feature_get and returns the raw reply for the
// caller to interpret (used for the supports_async capability probe,
// spec SPEC_FULL.md §4 supervised-feature-negotiation).
func (c *Client) FeatureGet(name string) (*xml.Response, error) {
	return c.issue("feature_get", "-n", name)
}

// Run resumes execution until the next breakpoint or termination.
func (c *Client) Run() (*xml.Continuation, error) {
	return c.continuation("run")
}

// StepInto steps into the next statement.
func (c *Client) StepInto() (*xml.Continuation, error) {
	return c.continuation("step_into")
}

// StepOver steps over the next statement.
func (c *Client) StepOver() (*xml.Continuation, error) {
	return c.continuation("step_over")
}

// StepOut steps out of the current function.
func (c *Client) StepOut() (*xml.Continuation, error) {
	return c.continuation("step_out")
}

func (c *Client) continuation(cmd string) (*xml.Continuation, error) {
	resp, err := c.issue(cmd)
	if err != nil {
		return nil, err
	}
	if resp.Continuation == nil {
		return nil, protocolErrorf("%s: expected continuation body, got variant on command %q", cmd, resp.Command)
	}
	return resp.Continuation, nil
}

// StackGet fetches the call stack starting at the given depth. depth
// 0 means every frame.
func (c *Client) StackGet(depth int) (*xml.StackGet, error) {
	var resp *xml.Response
	var err error
	if depth > 0 {
		resp, err = c.issue("stack_get", "-d", fmt.Sprint(depth))
	} else {
		resp, err = c.issue("stack_get")
	}
	if err != nil {
		return nil, err
	}
	if resp.StackGet == nil {
		return nil, protocolErrorf("stack_get: expected stack body, got variant on command %q", resp.Command)
	}
	return resp.StackGet, nil
}

// ContextGet fetches the local variable context for the given frame
// depth.
func (c *Client) ContextGet(depth int) (*xml.ContextGet, error) {
	resp, err := c.issue("context_get", "-d", fmt.Sprint(depth))
	if err != nil {
		return nil, err
	}
	if resp.ContextGet == nil {
		return nil, protocolErrorf("context_get: expected context body, got variant on command %q", resp.Command)
	}
	return resp.ContextGet, nil
}

// Source fetches and decodes the text of filename.
func (c *Client) Source(filename string) (string, error) {
	resp, err := c.issue("source", "-f", filename)
	if err != nil {
		return "", err
	}
	if resp.Source == nil {
		return "", protocolErrorf("source: expected source body, got variant on command %q", resp.Command)
	}
	return resp.Source.Text, nil
}

// Eval evaluates expression in the context of the given frame depth.
// A failed evaluation is reported via Eval.Err, not as a Go error.
func (c *Client) Eval(expression string, depth int) (*xml.Eval, error) {
	resp, err := c.issue("eval", "-d", fmt.Sprint(depth), "--", encodeArg(expression))
	if err != nil {
		return nil, err
	}
	if resp.Eval == nil {
		return nil, protocolErrorf("eval: expected eval body, got variant on command %q", resp.Command)
	}
	return resp.Eval, nil
}

// Disconnect shuts down the write half of the transport. Safe to call
// more than once (spec §4.C "idempotent").
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disconnect || c.stream == nil {
		return nil
	}
	c.disconnect = true

	wc, ok := c.stream.(writeCloser)
	if !ok {
		if closer, ok := c.stream.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	if err := wc.CloseWrite(); err != nil {
		return &wire.TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// issue sends a command with the given argument tokens, reads the
// reply frame, decodes it, and confirms the reply carries the
// transaction id just issued.
func (c *Client) issue(cmd string, args ...string) (*xml.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.framer == nil {
		return nil, protocolErrorf("%s: client is not connected", cmd)
	}

	tid := c.tid.Add(1)
	line := buildCommandLine(cmd, tid, args)
	if err := c.framer.WriteCommand(line); err != nil {
		return nil, err
	}

	payload, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}

	decoded, err := xml.Decode(payload)
	if err != nil {
		return nil, err
	}
	resp, ok := decoded.(*xml.Response)
	if !ok {
		return nil, protocolErrorf("%s: expected response, got %T", cmd, decoded)
	}
	if resp.TransactionID != int(tid) {
		return nil, protocolErrorf("%s: transaction id mismatch, issued %d got %d", cmd, tid, resp.TransactionID)
	}
	return resp, nil
}

func buildCommandLine(cmd string, tid int64, args []string) string {
	var b strings.Builder
	b.WriteString(cmd)
	b.WriteString(" -i ")
	b.WriteString(fmt.Sprint(tid))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	return b.String()
}

// encodeArg base64-encodes an eval expression per the DBGp command
// grammar (spec §6: "eval -i <tid> -- <base64-of-expression>").
func encodeArg(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
