package steering

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// -------------------------------------------------------------------------
// Protocol Constants — design §4.2, §6
// -------------------------------------------------------------------------

// Magic is the fixed first byte of every frame header (design §4.2).
const Magic uint8 = 0x30

// ProtocolVersion is the protocol version this implementation speaks and
// accepts (design §4.2). Frames with a strictly greater version are
// dropped.
const ProtocolVersion uint8 = 0x01

// HeaderSize is the frame header size in bytes: magic(1) + version(1) +
// total_length(2) + serial_number(2) (design §4.2).
const HeaderSize = 6

// MaxFrameSize is the maximum single-frame size produced by the writer
// (design §4.2).
const MaxFrameSize = 1024

// EtherType is the experimental ethertype carrying steering frames
// (design §6).
const EtherType = 0x8267

// tlvHeaderSize is the per-TLV overhead: type(1) + length(1).
const tlvHeaderSize = 2

// TLV type codes (design §4.2).
const (
	// TLVScore carries a client's current signal score.
	TLVScore uint8 = 0

	// TLVCloseClient asks the addressed BSSID to release a client.
	TLVCloseClient uint8 = 1

	// TLVClosedClient acknowledges that a client has been blacklisted
	// locally.
	TLVClosedClient uint8 = 2
)

// Fixed TLV payload sizes (design §4.2).
const (
	scorePayloadLen        = 18 // client_mac[6] | sender_bssid[6] | score[2] | assoc_msecs[4]
	closeClientPayloadLen  = 19 // client_mac[6] | sender_bssid[6] | target_bssid[6] | sender_channel[1]
	closedClientPayloadLen = 12 // client_mac[6] | acknowledging_bssid[6]
)

// LostScore is the sentinel local_score value meaning "no/lost score"
// (design §3, §4.3).
const LostScore uint16 = 0xFFFF

// -------------------------------------------------------------------------
// Codec Errors
// -------------------------------------------------------------------------

// Sentinel errors for frame/TLV validation failures (design §4.2, §7).
// All of them except ErrBufTooSmall (a FrameWriter error) cause the entire
// frame to be dropped with no side effects.
var (
	// ErrFrameTooShort indicates fewer than HeaderSize bytes were supplied.
	ErrFrameTooShort = errors.New("frame shorter than header")

	// ErrBadMagic indicates the magic byte did not match Magic.
	ErrBadMagic = errors.New("bad frame magic")

	// ErrUnsupportedVersion indicates the frame's version is strictly
	// greater than ProtocolVersion.
	ErrUnsupportedVersion = errors.New("unsupported frame version")

	// ErrLengthExceedsBuffer indicates the declared total_length exceeds
	// the bytes actually received.
	ErrLengthExceedsBuffer = errors.New("declared length exceeds buffer")

	// ErrTLVUnderflow indicates a TLV's declared length is smaller than
	// the type's minimum payload size. The rest of the frame is dropped.
	ErrTLVUnderflow = errors.New("tlv length underflows type minimum")

	// ErrTLVTruncated indicates a TLV's declared length runs past the end
	// of the frame buffer.
	ErrTLVTruncated = errors.New("tlv truncated")

	// ErrBufTooSmall indicates the frame FrameWriter.Build would produce
	// exceeds MaxFrameSize.
	ErrBufTooSmall = errors.New("buffer too small for frame")
)

// -------------------------------------------------------------------------
// Frame — design §4.2
// -------------------------------------------------------------------------

// Frame is a decoded neighbor-exchange protocol frame: the header fields
// plus the ordered list of successfully parsed TLVs. Unknown TLV types are
// skipped during parsing and are not present here (design §4.2, §7).
type Frame struct {
	// Version is the protocol version of the received frame.
	Version uint8

	// SerialNumber is the frame_sn of the sending context (design §3).
	// Treated as opaque per design §9 -- SteeringContext does not read it.
	SerialNumber uint16

	// TLVs holds the recognized, successfully parsed TLV payloads in wire
	// order.
	TLVs []TLV
}

// TLV is one recognized, decoded type-length-value record.
type TLV struct {
	// Type is one of TLVScore, TLVCloseClient, TLVClosedClient.
	Type uint8

	// Score is populated when Type == TLVScore.
	Score *ScoreTLV

	// CloseClient is populated when Type == TLVCloseClient.
	CloseClient *CloseClientTLV

	// ClosedClient is populated when Type == TLVClosedClient.
	ClosedClient *ClosedClientTLV
}

// ScoreTLV is TLV_SCORE (type 0, design §4.2): a peer reporting the
// current signal score it has for a client.
type ScoreTLV struct {
	ClientMAC    [6]byte
	SenderBSSID  [6]byte
	Score        uint16
	AssocMsecs   uint32
}

// CloseClientTLV is TLV_CLOSE_CLIENT (type 1, design §4.2): "please
// blacklist this client".
type CloseClientTLV struct {
	ClientMAC     [6]byte
	SenderBSSID   [6]byte
	TargetBSSID   [6]byte
	SenderChannel uint8
}

// ClosedClientTLV is TLV_CLOSED_CLIENT (type 2, design §4.2): "I have
// blacklisted this client".
type ClosedClientTLV struct {
	ClientMAC           [6]byte
	AcknowledgingBSSID  [6]byte
}

// -------------------------------------------------------------------------
// ParseFrame — design §4.2, §7, §8
// -------------------------------------------------------------------------

// ParseFrame decodes a neighbor-exchange frame from buf.
//
// Per the parser contract (design §4.2): the entire frame is rejected (no
// side effects, nil Frame) on magic mismatch, unsupported version, a
// truncated header, or a declared total_length exceeding len(buf).
// Unknown TLV types are skipped using the TLV length field and parsing
// continues. A TLV whose declared length underflows the minimum payload
// size for its type is a parse error that drops the REST of the frame
// (TLVs already parsed are discarded with the whole-frame reject, per
// "drop entire frame, no side effects").
func ParseFrame(buf []byte) (*Frame, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("parse frame: %d bytes: %w", len(buf), ErrFrameTooShort)
	}

	if buf[0] != Magic {
		return nil, fmt.Errorf("parse frame: magic 0x%02x: %w", buf[0], ErrBadMagic)
	}

	version := buf[1]
	if version > ProtocolVersion {
		return nil, fmt.Errorf("parse frame: version %d: %w", version, ErrUnsupportedVersion)
	}

	// total_length counts everything after the first two bytes (design
	// §4.2: "bytes of entire frame minus the first two").
	totalLength := binary.BigEndian.Uint16(buf[2:4])
	if int(totalLength)+2 > len(buf) {
		return nil, fmt.Errorf("parse frame: declared %d, have %d: %w",
			totalLength, len(buf), ErrLengthExceedsBuffer)
	}

	serial := binary.BigEndian.Uint16(buf[4:6])
	frameEnd := int(totalLength) + 2

	tlvs, err := parseTLVs(buf[HeaderSize:frameEnd])
	if err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	return &Frame{Version: version, SerialNumber: serial, TLVs: tlvs}, nil
}

// parseTLVs walks the TLV area of a frame, skipping unknown types and
// stopping (with an error) on an underflowing or truncated TLV.
func parseTLVs(area []byte) ([]TLV, error) {
	var tlvs []TLV

	for off := 0; off < len(area); {
		if off+tlvHeaderSize > len(area) {
			return nil, fmt.Errorf("tlv header at offset %d: %w", off, ErrTLVTruncated)
		}

		typ := area[off]
		length := int(area[off+1])
		payloadStart := off + tlvHeaderSize
		payloadEnd := payloadStart + length

		if payloadEnd > len(area) {
			return nil, fmt.Errorf("tlv type %d length %d at offset %d: %w",
				typ, length, off, ErrTLVTruncated)
		}

		payload := area[payloadStart:payloadEnd]

		tlv, known, err := decodeTLV(typ, payload)
		if err != nil {
			return nil, err
		}
		if known {
			tlvs = append(tlvs, tlv)
		}
		// Unknown types are skipped silently using the length field
		// (design §4.2, §7): known==false, err==nil falls through here.

		off = payloadEnd
	}

	return tlvs, nil
}

// decodeTLV decodes a single TLV payload for a recognized type. known is
// false (with a nil error) for unrecognized type codes, which the caller
// skips. err is non-nil only for a recognized type whose payload
// underflows its minimum length -- a parse error that drops the rest of
// the frame.
func decodeTLV(typ uint8, payload []byte) (tlv TLV, known bool, err error) {
	switch typ {
	case TLVScore:
		if len(payload) < scorePayloadLen {
			return TLV{}, false, fmt.Errorf("score tlv: %d bytes: %w", len(payload), ErrTLVUnderflow)
		}
		s := &ScoreTLV{}
		copy(s.ClientMAC[:], payload[0:6])
		copy(s.SenderBSSID[:], payload[6:12])
		s.Score = binary.BigEndian.Uint16(payload[12:14])
		s.AssocMsecs = binary.BigEndian.Uint32(payload[14:18])
		return TLV{Type: TLVScore, Score: s}, true, nil

	case TLVCloseClient:
		if len(payload) < closeClientPayloadLen {
			return TLV{}, false, fmt.Errorf("close_client tlv: %d bytes: %w", len(payload), ErrTLVUnderflow)
		}
		c := &CloseClientTLV{}
		copy(c.ClientMAC[:], payload[0:6])
		copy(c.SenderBSSID[:], payload[6:12])
		copy(c.TargetBSSID[:], payload[12:18])
		c.SenderChannel = payload[18]
		return TLV{Type: TLVCloseClient, CloseClient: c}, true, nil

	case TLVClosedClient:
		if len(payload) < closedClientPayloadLen {
			return TLV{}, false, fmt.Errorf("closed_client tlv: %d bytes: %w", len(payload), ErrTLVUnderflow)
		}
		a := &ClosedClientTLV{}
		copy(a.ClientMAC[:], payload[0:6])
		copy(a.AcknowledgingBSSID[:], payload[6:12])
		return TLV{Type: TLVClosedClient, ClosedClient: a}, true, nil

	default:
		// Unknown TLV type: skipped by the caller using the length field.
		return TLV{}, false, nil
	}
}

// -------------------------------------------------------------------------
// FrameWriter — design §4.2
// -------------------------------------------------------------------------

// FrameWriter accumulates TLVs and produces a single framed buffer.
// Build writes the caller-supplied serial number and computes total_length
// after all TLVs are appended (design §4.2: writer contract).
type FrameWriter struct {
	tlvs [][]byte
}

// NewFrameWriter returns an empty FrameWriter.
func NewFrameWriter() *FrameWriter {
	return &FrameWriter{}
}

// AppendScore appends a TLV_SCORE record.
func (w *FrameWriter) AppendScore(clientMAC, senderBSSID [6]byte, score uint16, assocMsecs uint32) {
	buf := make([]byte, scorePayloadLen)
	copy(buf[0:6], clientMAC[:])
	copy(buf[6:12], senderBSSID[:])
	binary.BigEndian.PutUint16(buf[12:14], score)
	binary.BigEndian.PutUint32(buf[14:18], assocMsecs)
	w.append(TLVScore, buf)
}

// AppendCloseClient appends a TLV_CLOSE_CLIENT record.
func (w *FrameWriter) AppendCloseClient(clientMAC, senderBSSID, targetBSSID [6]byte, senderChannel uint8) {
	buf := make([]byte, closeClientPayloadLen)
	copy(buf[0:6], clientMAC[:])
	copy(buf[6:12], senderBSSID[:])
	copy(buf[12:18], targetBSSID[:])
	buf[18] = senderChannel
	w.append(TLVCloseClient, buf)
}

// AppendClosedClient appends a TLV_CLOSED_CLIENT record.
func (w *FrameWriter) AppendClosedClient(clientMAC, acknowledgingBSSID [6]byte) {
	buf := make([]byte, closedClientPayloadLen)
	copy(buf[0:6], clientMAC[:])
	copy(buf[6:12], acknowledgingBSSID[:])
	w.append(TLVClosedClient, buf)
}

func (w *FrameWriter) append(typ uint8, payload []byte) {
	rec := make([]byte, tlvHeaderSize+len(payload))
	rec[0] = typ
	rec[1] = uint8(len(payload))
	copy(rec[tlvHeaderSize:], payload)
	w.tlvs = append(w.tlvs, rec)
}

// Build serializes the accumulated TLVs into a single frame using serial
// as the frame_sn (design §3: SteeringContext.frame_sn, monotonically
// increasing per sent frame; the caller owns the counter and its wrap
// behavior per design §9).
//
// Returns ErrBufTooSmall if the result would exceed MaxFrameSize.
func (w *FrameWriter) Build(serial uint16) ([]byte, error) {
	tlvLen := 0
	for _, t := range w.tlvs {
		tlvLen += len(t)
	}

	total := HeaderSize + tlvLen
	if total > MaxFrameSize {
		return nil, fmt.Errorf("build frame: %d bytes exceeds max %d: %w", total, MaxFrameSize, ErrBufTooSmall)
	}

	buf := make([]byte, total)
	buf[0] = Magic
	buf[1] = ProtocolVersion
	// total_length = entire frame minus the first two bytes.
	binary.BigEndian.PutUint16(buf[2:4], uint16(total-2))
	binary.BigEndian.PutUint16(buf[4:6], serial)

	off := HeaderSize
	for _, t := range w.tlvs {
		off += copy(buf[off:], t)
	}

	return buf, nil
}
