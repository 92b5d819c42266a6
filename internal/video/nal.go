package video

// ScanStartCodeNALUs splits a concatenated Annex-B buffer into individual
// NAL units, recognizing both the 3-byte (00 00 01) and 4-byte
// (00 00 00 01) start code forms. The returned slices reference buf
// directly (no copy) and exclude the start code itself; callers must not
// retain them past buf's lifetime.
//
// Grounded on the teacher's STAP-A/FU-A NAL scanning discipline
// (pkg/rtp/h264.go), run here over Annex-B start codes instead of RTP
// aggregation/fragmentation headers since the decode unit arrives as
// concatenated buffers rather than already-packetized RTP payloads.
func ScanStartCodeNALUs(buf []byte) [][]byte {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil
	}

	nalus := make([][]byte, 0, len(starts))
	for i, s := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1].codeOffset
		}
		nal := buf[s.payloadOffset:end]
		// Skip the empty NAL left between two adjacent start codes
		// (defensive; well-formed Annex-B never does this).
		if len(nal) == 0 {
			continue
		}
		nalus = append(nalus, nal)
	}
	return nalus
}

type startCode struct {
	codeOffset    int // index of the first 0x00 of the marker
	payloadOffset int // index of the first byte after the marker
}

func findStartCodes(buf []byte) []startCode {
	var out []startCode
	i := 0
	for i+2 < len(buf) {
		if buf[i] == 0x00 && buf[i+1] == 0x00 {
			if buf[i+2] == 0x01 {
				out = append(out, startCode{codeOffset: i, payloadOffset: i + 3})
				i += 3
				continue
			}
			if i+3 < len(buf) && buf[i+2] == 0x00 && buf[i+3] == 0x01 {
				out = append(out, startCode{codeOffset: i, payloadOffset: i + 4})
				i += 4
				continue
			}
		}
		i++
	}
	return out
}

// H264NALType extracts the NAL unit type from an H.264 NAL header byte.
func H264NALType(nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	return nal[0] & 0x1F
}

// H264 NAL unit type constants, reused from the teacher's depacketizer
// (pkg/rtp/h264.go) since this packetizer scans the same NAL grammar in
// reverse.
const (
	h264NALTypeIFrame = 5
	h264NALTypeSPS    = 7
	h264NALTypePPS    = 8
)

// IsH264Keyframe reports whether nal is an IDR slice.
func IsH264Keyframe(nal []byte) bool {
	return H264NALType(nal) == h264NALTypeIFrame
}

// H265NALType extracts the NAL unit type from an H.265 NAL header (the type
// occupies bits 1-6 of the first byte).
func H265NALType(nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	return (nal[0] >> 1) & 0x3F
}

// H.265 IDR NAL unit types (IDR_W_RADL=19, IDR_N_LP=20, CRA_NUT=21).
const (
	h265NALTypeIDRWRADL = 19
	h265NALTypeIDRNLP   = 20
	h265NALTypeCRA      = 21
)

// IsH265Keyframe reports whether nal is an IDR/CRA slice.
func IsH265Keyframe(nal []byte) bool {
	t := H265NALType(nal)
	return t == h265NALTypeIDRWRADL || t == h265NALTypeIDRNLP || t == h265NALTypeCRA
}
