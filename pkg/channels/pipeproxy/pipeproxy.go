// Package pipeproxy bridges a dynamic virtual channel to a local
// Unix-domain socket, standing in for the Windows named-pipe endpoint
//  names as an external collaborator ("\\.\pipe\<name>" on
// Windows; "an abstract socket equivalent" on Unix). The bridge exchanges
// raw channel-message bytes in both directions.
//
// Grounded on the teacher's internal/transport/udp bounded-channel glue
// (producer goroutine + buffered channel feeding a consumer loop) and the
// worker-queue idiom in runZeroInc-conniver/runZeroInc-sockstats, adapted
// here to the DvcProcessor four-method contract instead of a raw
// transport. Overflow policy is block-with-backpressure: a
// slow consumer blocks the sender rather than dropping DVC frames, since a
// drop would corrupt reassembly state elsewhere in the pump.
package pipeproxy

import (
	"net"
	"sync"

	"github.com/kulaginds/rdp-core/internal/rdplog"
)

var log = rdplog.For("channels.pipeproxy")

// defaultQueueDepth bounds the queue of payloads read from the pipe; once
// it is full the read pump blocks until Process drains it
// ("block-with-backpressure").
const defaultQueueDepth = 32

// Proxy bridges one named dynamic channel to a net.Conn obtained by
// dialing a Unix-domain socket address. Each accepted/dialed connection
// backs exactly one live channel instance; Proxy supports any number of
// live instances concurrently, each with its own goroutine and queue.
type Proxy struct {
	name    string
	dial    func() (net.Conn, error)
	onError func(channelID uint32, err error)

	mu    sync.Mutex
	conns map[uint32]*bridgeConn
}

type bridgeConn struct {
	conn    net.Conn
	out     chan []byte // payloads read from the pipe, pulled by Process's caller
	done    chan struct{}
}

// New constructs a Proxy named for a dynamic channel, dialing dial() once
// per Create to obtain the local endpoint. onError, if non-nil, is
// called when a read from the bridged connection fails, and the read pump
// then stops; the connection itself is closed only by Close.
func New(name string, dial func() (net.Conn, error), onError func(channelID uint32, err error)) *Proxy {
	return &Proxy{name: name, dial: dial, onError: onError, conns: make(map[uint32]*bridgeConn)}
}

func (p *Proxy) ChannelName() string { return p.name }

// Start dials the local endpoint and launches the read-pump goroutine that
// feeds bridgeConn.out; Process drains it each call so the main pump never
// blocks on pipe I/O directly.
func (p *Proxy) Start(channelID uint32) ([][]byte, error) {
	conn, err := p.dial()
	if err != nil {
		return nil, err
	}
	bc := &bridgeConn{conn: conn, out: make(chan []byte, defaultQueueDepth), done: make(chan struct{})}

	p.mu.Lock()
	p.conns[channelID] = bc
	p.mu.Unlock()

	go p.readPump(channelID, bc)
	return nil, nil
}

func (p *Proxy) readPump(channelID uint32, bc *bridgeConn) {
	buf := make([]byte, 16384)
	for {
		n, err := bc.conn.Read(buf)
		if n > 0 {
			msg := append([]byte(nil), buf[:n]...)
			select {
			case bc.out <- msg:
			case <-bc.done:
				return
			}
		}
		if err != nil {
			if p.onError != nil {
				p.onError(channelID, err)
			}
			return
		}
	}
}

// Process writes an inbound DVC payload to the pipe and drains whatever
// the read-pump has queued so far, returning it as outbound DVC payloads.
func (p *Proxy) Process(channelID uint32, payload []byte) ([][]byte, error) {
	p.mu.Lock()
	bc, ok := p.conns[channelID]
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}

	if len(payload) > 0 {
		if _, err := bc.conn.Write(payload); err != nil {
			return nil, err
		}
	}

	var out [][]byte
	for {
		select {
		case msg := <-bc.out:
			out = append(out, msg)
		default:
			return out, nil
		}
	}
}

func (p *Proxy) Close(channelID uint32) {
	p.mu.Lock()
	bc, ok := p.conns[channelID]
	delete(p.conns, channelID)
	p.mu.Unlock()
	if !ok {
		return
	}
	close(bc.done)
	if err := bc.conn.Close(); err != nil {
		log.WithField("channel", p.name).WithError(err).Warnf("error closing pipe proxy connection")
	}
}
