// Package transport implements the L2 Peer Transport adapter: an
// AF_PACKET raw socket bound to a bridge interface, framing steering
// protocol frames inside Ethernet (802.3) headers under EtherType 0x8267.
package transport

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/cococorp/netsteer/internal/steering"
)

// EtherType is the Ethernet frame type carrying steering protocol payloads.
const EtherType = layers.EthernetType(steering.EtherType)

// Sentinel errors.
var (
	// ErrSocketClosed indicates a send or receive on a closed transport.
	ErrSocketClosed = errors.New("transport: socket closed")

	// ErrNotSteeringFrame indicates an Ethernet frame did not carry the
	// steering EtherType and was not decoded.
	ErrNotSteeringFrame = errors.New("transport: not a steering frame")
)

// encodeEthernet wraps a steering wire frame inside an Ethernet (802.3)
// frame addressed to dst, serialized with gopacket's layers.Ethernet rather
// than hand-written header bytes.
func encodeEthernet(src, dst steering.MAC, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       src[:],
		DstMAC:       dst[:],
		EthernetType: EtherType,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize ethernet frame: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeEthernet extracts the steering payload and source MAC from a raw
// Ethernet frame read off the wire. Frames not carrying EtherType return
// ErrNotSteeringFrame and must be dropped silently by the caller.
func decodeEthernet(raw []byte) (src steering.MAC, payload []byte, err error) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return src, nil, fmt.Errorf("decode ethernet frame: %w", ErrNotSteeringFrame)
	}

	eth, ok := ethLayer.(*layers.Ethernet)
	if !ok || eth.EthernetType != EtherType {
		return src, nil, fmt.Errorf("decode ethernet frame: %w", ErrNotSteeringFrame)
	}

	copy(src[:], eth.SrcMAC)
	payload = append([]byte(nil), eth.Payload...)

	return src, payload, nil
}
