package webrtcpeer

import (
	"context"
	"fmt"

	"github.com/pion/rtp"
)

// rtpFragmentSink adapts Peer to video.FragmentSink: every fragment becomes
// one RTP packet on the video track, with a sequence number this package
// assigns (pion's track writer does not assign sequence
// numbers itself, so the sink tracks them, matching the teacher's
// writeVideoSampleDirect).
type rtpFragmentSink Peer

func (s *rtpFragmentSink) SendFragment(_ context.Context, payload []byte, timestamp uint32, isLast bool) error {
	p := (*Peer)(s)

	p.mu.Lock()
	track := p.videoTrack
	p.mu.Unlock()
	if track == nil {
		return fmt.Errorf("webrtcpeer: video not set up")
	}

	p.videoMu.Lock()
	seq := p.videoSeq
	p.videoSeq++
	p.videoMu.Unlock()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			Marker:         isLast,
		},
		Payload: payload,
	}

	if err := track.WriteRTP(pkt); err != nil {
		return fmt.Errorf("webrtcpeer: write video rtp: %w", err)
	}
	return nil
}
