package sftpd

import "testing"

// TestReassemblerArbitraryChunking checks that for any partition of a
// valid packet stream into chunks ≥1 byte, the reassembler emits the
// identical ordered sequence of packets that a single-shot parser
// would.
func TestReassemblerArbitraryChunking(t *testing.T) {
	var stream []byte
	stream = append(stream, Serialize(PktInit, []byte{0, 0, 0, 3})...)
	stream = append(stream, Serialize(PktMkdir, MkdirRequest{Header: Header{ID: 7}, Path: "a"}.MarshalPayload())...)
	stream = append(stream, Serialize(PktData, make([]byte, 500))...)

	chunkSizes := []int{1, 2, 3, 7, 64, len(stream)}
	for _, size := range chunkSizes {
		var r Reassembler
		var got []Packet
		for off := 0; off < len(stream); off += size {
			end := off + size
			if end > len(stream) {
				end = len(stream)
			}
			pkts, err := r.Feed(stream[off:end])
			if err != nil {
				t.Fatalf("chunk size %d: Feed: %v", size, err)
			}
			got = append(got, pkts...)
		}
		if len(got) != 3 {
			t.Fatalf("chunk size %d: got %d packets, want 3", size, len(got))
		}
		if got[0].Type != PktInit || got[1].Type != PktMkdir || got[2].Type != PktData {
			t.Errorf("chunk size %d: got types %v %v %v", size, got[0].Type, got[1].Type, got[2].Type)
		}
		if len(got[2].Payload) != 500 {
			t.Errorf("chunk size %d: data payload length = %d, want 500", size, len(got[2].Payload))
		}
	}
}

func TestReassemblerSingleByteFeed(t *testing.T) {
	frame := Serialize(PktClose, CloseRequest{Header: Header{ID: 1}, Handle: "abc"}.MarshalPayload())
	var r Reassembler
	var got []Packet
	for _, b := range frame {
		pkts, err := r.Feed([]byte{b})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		got = append(got, pkts...)
	}
	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
	if got[0].Type != PktClose {
		t.Errorf("Type = %v, want PktClose", got[0].Type)
	}
}
