package sftpd

import "testing"

func TestSerializeLengthSelfConsistency(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		{0x01},
		make([]byte, 300),
	}
	for _, payload := range payloads {
		frame := Serialize(PktData, payload)
		length, typ, err := ParsePacketHeader(frame)
		if err != nil {
			t.Fatalf("ParsePacketHeader: %v", err)
		}
		if int(length) != 1+len(payload) {
			t.Errorf("length = %d, want %d", length, 1+len(payload))
		}
		if typ != PktData {
			t.Errorf("type = %v, want PktData", typ)
		}
		pkt, consumed, err := ParsePacket(frame)
		if err != nil {
			t.Fatalf("ParsePacket: %v", err)
		}
		if consumed != len(frame) {
			t.Errorf("consumed = %d, want %d", consumed, len(frame))
		}
		if len(pkt.Payload) != len(payload) {
			t.Errorf("payload length = %d, want %d", len(pkt.Payload), len(payload))
		}
	}
}

func TestParsePacketNeedsMore(t *testing.T) {
	frame := Serialize(PktData, []byte("hello"))
	for n := 0; n < len(frame); n++ {
		if _, _, err := ParsePacket(frame[:n]); err != ErrNeedMore {
			t.Errorf("ParsePacket(frame[:%d]) = %v, want ErrNeedMore", n, err)
		}
	}
}
