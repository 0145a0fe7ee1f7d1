package main

import (
	"fmt"
	"sync"

	"github.com/kulaginds/rdp-core/pkg/pdu/cliprdr"
)

// memClipboard is a minimal channels.ClipboardHost that keeps one
// in-process slot instead of touching an OS clipboard, which would need a
// platform-specific collaborator outside this core's scope. It lets the
// CLI exercise the CLIPRDR handshake end to end without that dependency.
type memClipboard struct {
	mu   sync.Mutex
	data map[uint32][]byte
}

func newMemClipboard() *memClipboard {
	return &memClipboard{data: make(map[uint32][]byte)}
}

const clipboardFormatText = 13 // CF_UNICODETEXT

func (c *memClipboard) LocalFormats() []cliprdr.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[clipboardFormatText]; !ok {
		return nil
	}
	return []cliprdr.Format{{ID: clipboardFormatText}}
}

func (c *memClipboard) RegisterRemoteFormat(name string, remoteID uint32) {
	log.WithField("format", name).WithField("id", remoteID).Debugf("peer registered clipboard format")
}

func (c *memClipboard) ReadLocalData(formatID uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[formatID]
	if !ok {
		return nil, fmt.Errorf("clipboard: no local data for format %d", formatID)
	}
	return data, nil
}

func (c *memClipboard) WriteRemoteData(formatID uint32, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[formatID] = data
	log.WithField("format", formatID).WithField("bytes", len(data)).Infof("received clipboard data")
}
