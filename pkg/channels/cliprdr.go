package channels

import (
	"sync"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/pdu/cliprdr"
)

// ClipboardHost is the external collaborator a ClipboardProcessor drives:
// the actual OS clipboard, plugged in as a dynamic-channel handler on the
// DVC manager, i.e. an external collaborator whose implementation is out
// of this core's scope.
type ClipboardHost interface {
	// LocalFormats returns the formats currently available on the local
	// clipboard, keyed by locally-assigned format ID.
	LocalFormats() []cliprdr.Format
	// RegisterRemoteFormat is called for every registered-by-name format
	// the peer advertises, so the host can expose it locally.
	RegisterRemoteFormat(name string, remoteID uint32)
	// ReadLocalData returns the local clipboard payload for a format the
	// peer requested.
	ReadLocalData(formatID uint32) ([]byte, error)
	// WriteRemoteData delivers clipboard data the peer sent in response to
	// a request this processor issued.
	WriteRemoteData(formatID uint32, data []byte)
}

// ClipboardProcessor is the CLIPRDR dynamic-channel processor: it
// maintains the remote<->local format-ID mapping table and speaks
// MS-RDPECLIP's monitor-ready/format-list/format-data handshake.
//
// Grounded on the format-ID classification rules in cliprdr.go; the
// concurrency-safe map is a sync.RWMutex pair, the teacher's idiom for
// any small shared lookup table (internal/rdpmetrics and internal/auth
// both favor a plain mutex over a sync.Map for bounded,
// infrequently-resized maps).
type ClipboardProcessor struct {
	host ClipboardHost

	mu           sync.RWMutex
	remoteToLocal map[uint32]uint32
	localToRemote map[uint32]uint32
	remoteNames   map[uint32]string
}

// NewClipboardProcessor constructs a processor bound to the given
// clipboard host.
func NewClipboardProcessor(host ClipboardHost) *ClipboardProcessor {
	return &ClipboardProcessor{
		host:          host,
		remoteToLocal: make(map[uint32]uint32),
		localToRemote: make(map[uint32]uint32),
		remoteNames:   make(map[uint32]string),
	}
}

func (p *ClipboardProcessor) ChannelName() string { return "CLIPRDR" }

// Start sends the client's MonitorReady acknowledgement the moment the
// channel opens (MS-RDPECLIP 3.1.5.2.1: the client always speaks first).
func (p *ClipboardProcessor) Start(channelID uint32) ([][]byte, error) {
	return p.encodeAll(cliprdr.MonitorReady{})
}

func (p *ClipboardProcessor) Close(channelID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteToLocal = make(map[uint32]uint32)
	p.localToRemote = make(map[uint32]uint32)
	p.remoteNames = make(map[uint32]string)
}

// Process dispatches one reassembled CLIPRDR message.
func (p *ClipboardProcessor) Process(channelID uint32, payload []byte) ([][]byte, error) {
	c := pdu.NewReadCursor(payload)
	hdr, err := cliprdr.DecodeHeader(c)
	if err != nil {
		return nil, err
	}

	switch hdr.MsgType {
	case cliprdr.MsgTypeMonitorReady:
		// Server's MonitorReady: reply with our own format list.
		return p.sendFormatList()

	case cliprdr.MsgTypeFormatList:
		fl, err := cliprdr.DecodeFormatListBody(c, int(hdr.DataLen))
		if err != nil {
			return nil, err
		}
		p.remapFormats(fl)
		return p.encodeAll(cliprdr.FormatListResponse{OK: true})

	case cliprdr.MsgTypeFormatListResponse:
		return nil, nil

	case cliprdr.MsgTypeFormatDataRequest:
		req, err := cliprdr.DecodeFormatDataRequestBody(c)
		if err != nil {
			return nil, err
		}
		localID := p.toLocal(req.RequestedFormatID)
		data, err := p.host.ReadLocalData(localID)
		if err != nil {
			return p.encodeAll(cliprdr.FormatDataResponse{OK: false})
		}
		return p.encodeAll(cliprdr.FormatDataResponse{OK: true, Data: data})

	case cliprdr.MsgTypeFormatDataResponse:
		resp, err := cliprdr.DecodeFormatDataResponseBody(c, int(hdr.DataLen))
		if err != nil {
			return nil, err
		}
		if hdr.MsgFlags&cliprdr.MsgFlagResponseOK != 0 {
			p.host.WriteRemoteData(0, resp.Data)
		}
		return nil, nil

	case cliprdr.MsgTypeLock, cliprdr.MsgTypeUnlock, cliprdr.MsgTypeFileContentsRequest, cliprdr.MsgTypeFileContentsResponse:
		// File-contents and lock/unlock bridging is a host concern beyond
		// the core's in-scope format-ID remapping; acknowledged but not
		// processed further here.
		return nil, nil

	default:
		return nil, nil
	}
}

// remapFormats applies classification rule: clear both maps,
// then for each remote format, standard IDs pass through unchanged,
// private/GDI-range IDs are dropped, and registered-by-name IDs are
// recorded by name and handed to the host's RegisterRemoteFormat. No
// remote<->local ID pair is stored for registered formats, so toLocal
// returns their remote ID unchanged.
func (p *ClipboardProcessor) remapFormats(fl cliprdr.FormatList) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteToLocal = make(map[uint32]uint32)
	p.localToRemote = make(map[uint32]uint32)
	p.remoteNames = make(map[uint32]string)

	for _, f := range fl.Formats {
		switch cliprdr.ClassifyFormat(f.ID) {
		case cliprdr.FormatClassStandard:
			p.remoteToLocal[f.ID] = f.ID
			p.localToRemote[f.ID] = f.ID
		case cliprdr.FormatClassPrivate:
			// never mirrored
		case cliprdr.FormatClassRegistered:
			p.remoteNames[f.ID] = f.Name
			p.host.RegisterRemoteFormat(f.Name, f.ID)
		}
	}
}

func (p *ClipboardProcessor) toLocal(remoteID uint32) uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.remoteToLocal[remoteID]; ok {
		return id
	}
	return remoteID
}

func (p *ClipboardProcessor) sendFormatList() ([][]byte, error) {
	formats := p.host.LocalFormats()
	return p.encodeAll(cliprdr.FormatList{Formats: formats})
}

func (p *ClipboardProcessor) encodeAll(v interface {
	Size() int
	Encode(*pdu.Cursor) error
}) ([][]byte, error) {
	c := pdu.NewCursor(make([]byte, 0, v.Size()))
	if err := v.Encode(c); err != nil {
		return nil, err
	}
	return [][]byte{c.Bytes()}, nil
}
