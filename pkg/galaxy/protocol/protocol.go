// Package protocol implements the three wire protocols the daemon speaks:
// the daemon control socket handshake, the per-session control socket
// command, and the delivery socket event. Each type here is a thin,
// explicit encode/decode pair built on pkg/galaxy/wire — there is no
// generic RPC layer (see DESIGN.md).
package protocol

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/wire"
)

// Command identifies a per-session control operation.
type Command uint32

const (
	CommandWatch       Command = 1
	CommandIgnoreMask  Command = 2
	CommandIgnoreWatch Command = 3
	CommandExit        Command = 4
)

func (c Command) String() string {
	switch c {
	case CommandWatch:
		return "WATCH"
	case CommandIgnoreMask:
		return "IGNORE_MASK"
	case CommandIgnoreWatch:
		return "IGNORE_WATCH"
	case CommandExit:
		return "EXIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(c))
	}
}

// Ack is the handshake and rule-command acknowledgement code.
type Ack uint32

const (
	AckSuccess Ack = 1
	AckFail    Ack = 2
)

// HandshakeRequest is the client->daemon half of the daemon control socket
// handshake.
type HandshakeRequest struct {
	DeliverySocketPath string
	PID                uint32
	ClientLocalID      uint32
}

// WriteHandshakeRequest writes a HandshakeRequest frame.
func WriteHandshakeRequest(w io.Writer, req HandshakeRequest) error {
	if err := wire.WriteString(w, req.DeliverySocketPath); err != nil {
		return errors.Wrap(err, "unable to write delivery socket path")
	}
	if err := wire.WriteUint32(w, req.PID); err != nil {
		return errors.Wrap(err, "unable to write pid")
	}
	if err := wire.WriteUint32(w, req.ClientLocalID); err != nil {
		return errors.Wrap(err, "unable to write client-local id")
	}
	return nil
}

// ReadHandshakeRequest reads a HandshakeRequest frame.
func ReadHandshakeRequest(r io.Reader) (HandshakeRequest, error) {
	var req HandshakeRequest
	path, err := wire.ReadString(r)
	if err != nil {
		return req, errors.Wrap(err, "unable to read delivery socket path")
	}
	pid, err := wire.ReadUint32(r)
	if err != nil {
		return req, errors.Wrap(err, "unable to read pid")
	}
	id, err := wire.ReadUint32(r)
	if err != nil {
		return req, errors.Wrap(err, "unable to read client-local id")
	}
	req.DeliverySocketPath = path
	req.PID = pid
	req.ClientLocalID = id
	return req, nil
}

// WriteAck writes a single ack code.
func WriteAck(w io.Writer, ack Ack) error {
	return wire.WriteUint32(w, uint32(ack))
}

// ReadAck reads a single ack code.
func ReadAck(r io.Reader) (Ack, error) {
	v, err := wire.ReadUint32(r)
	return Ack(v), err
}

// ControlRequest is a single per-session control command. Regex is
// populated only for WATCH and IGNORE_WATCH.
type ControlRequest struct {
	Command Command
	Mask    event.Mask
	Regex   string
}

// WriteControlRequest writes a ControlRequest frame.
func WriteControlRequest(w io.Writer, req ControlRequest) error {
	if err := wire.WriteUint32(w, uint32(req.Command)); err != nil {
		return errors.Wrap(err, "unable to write command")
	}
	if req.Command == CommandExit {
		return nil
	}
	if err := wire.WriteUint32(w, uint32(req.Mask)); err != nil {
		return errors.Wrap(err, "unable to write mask")
	}
	if req.Command == CommandWatch || req.Command == CommandIgnoreWatch {
		if err := wire.WriteString(w, req.Regex); err != nil {
			return errors.Wrap(err, "unable to write regex")
		}
	}
	return nil
}

// ReadControlRequest reads a ControlRequest frame.
func ReadControlRequest(r io.Reader) (ControlRequest, error) {
	var req ControlRequest
	cmd, err := wire.ReadUint32(r)
	if err != nil {
		return req, errors.Wrap(err, "unable to read command")
	}
	req.Command = Command(cmd)
	if req.Command == CommandExit {
		return req, nil
	}
	mask, err := wire.ReadUint32(r)
	if err != nil {
		return req, errors.Wrap(err, "unable to read mask")
	}
	req.Mask = event.Mask(mask)
	if req.Command == CommandWatch || req.Command == CommandIgnoreWatch {
		regex, err := wire.ReadString(r)
		if err != nil {
			return req, errors.Wrap(err, "unable to read regex")
		}
		req.Regex = regex
	}
	return req, nil
}

// WriteDelivered writes a Delivered event frame to a client's delivery
// socket.
func WriteDelivered(w io.Writer, d event.Delivered) error {
	if err := wire.WriteUint32(w, uint32(d.Mask)); err != nil {
		return errors.Wrap(err, "unable to write mask")
	}
	if err := wire.WriteInt64(w, d.Timestamp.Unix()); err != nil {
		return errors.Wrap(err, "unable to write timestamp")
	}
	if err := wire.WriteString(w, d.Path); err != nil {
		return errors.Wrap(err, "unable to write path")
	}
	return nil
}

// ReadDelivered reads a Delivered event frame.
func ReadDelivered(r io.Reader) (event.Delivered, error) {
	var d event.Delivered
	mask, err := wire.ReadUint32(r)
	if err != nil {
		return d, errors.Wrap(err, "unable to read mask")
	}
	ts, err := wire.ReadInt64(r)
	if err != nil {
		return d, errors.Wrap(err, "unable to read timestamp")
	}
	path, err := wire.ReadString(r)
	if err != nil {
		return d, errors.Wrap(err, "unable to read path")
	}
	d.Mask = event.Mask(mask)
	d.Timestamp = time.Unix(ts, 0).UTC()
	d.Path = path
	return d, nil
}
