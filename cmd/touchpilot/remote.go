package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// Remote joystick packets:
//
//	3 bytes: [joyX, joyY, buttonB]          buttonB == 1 holds B (firmware format)
//	5 bytes: [lx, ly, rx, ry, buttonMask]   B is bit 1 (desktop controller format)
//
// Axes use 0..255 with 128 at center. The right stick of the 5-byte format has no
// output and is ignored.
const (
	remotePacketShort = 3
	remotePacketLong  = 5
)

var errBadRemotePacket = errors.New("bad remote packet")

func decodeRemotePacket(p []byte) (RemoteInput, error) {
	switch len(p) {
	case remotePacketShort:
		return RemoteInput{JoyX: p[0], JoyY: p[1], ButtonB: p[2] == 1, Origin: "udp"}, nil
	case remotePacketLong:
		return RemoteInput{JoyX: p[0], JoyY: p[1], ButtonB: p[4]&remoteMaskB != 0, Origin: "udp"}, nil
	default:
		return RemoteInput{}, fmt.Errorf("%w: %d bytes", errBadRemotePacket, len(p))
	}
}

// runRemoteListener receives joystick datagrams until ctx is canceled. Packets are
// best effort: malformed ones are dropped, and so is everything when the event
// queue is full.
func runRemoteListener(ctx context.Context, bind string, port int, events chan<- Event, logger *slog.Logger) error {
	addr := &net.UDPAddr{Port: port}
	if bind != "" {
		addr.IP = net.ParseIP(bind)
		if addr.IP == nil {
			return fmt.Errorf("remote bind address %q is not an IP", bind)
		}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("remote listen: %w", err)
	}
	return serveRemote(ctx, conn, events, logger)
}

func serveRemote(ctx context.Context, conn net.PacketConn, events chan<- Event, logger *slog.Logger) error {
	defer conn.Close()
	logger.Info("remote listening", "addr", conn.LocalAddr().String())

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 64)
	var dropped uint64
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("remote read failed", "error", err)
			continue
		}

		in, err := decodeRemotePacket(buf[:n])
		if err != nil {
			logger.Debug("remote packet dropped", "from", from.String(), "error", err)
			continue
		}

		select {
		case events <- in:
		default:
			dropped++
			if dropped == 1 || dropped%100 == 0 {
				logger.Warn("event queue full, dropping remote input", "dropped", dropped)
			}
		}
	}
}
