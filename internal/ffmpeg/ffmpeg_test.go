package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRunner struct {
	output []byte
	err    error
	calls  [][]string
	name   string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.calls = append(f.calls, args)
	return f.output, f.err
}

func TestIsHDR(t *testing.T) {
	cases := []struct {
		name string
		info StreamInfo
		want bool
	}{
		{"ten bit", StreamInfo{BitsPerRawSample: "10"}, true},
		{"hlg transfer", StreamInfo{ColorTransfer: "arib-std-b67"}, true},
		{"pq transfer", StreamInfo{ColorTransfer: "smpte2084"}, true},
		{"sdr", StreamInfo{BitsPerRawSample: "8", ColorTransfer: "bt709"}, false},
		{"empty", StreamInfo{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.info.IsHDR(); got != tc.want {
				t.Errorf("IsHDR() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTranscodeArgsHDR(t *testing.T) {
	info := StreamInfo{
		ColorSpace:       "bt2020nc",
		ColorTransfer:    "arib-std-b67",
		ColorPrimaries:   "bt2020",
		BitsPerRawSample: "10",
	}
	joined := strings.Join(TranscodeArgs("in.mov", "out.mp4", info), " ")

	for _, want := range []string{
		"-c:v libx265",
		"-tag:v hvc1",
		"-pix_fmt yuv420p10le",
		"hdr10=1",
		"colorprim=bt2020",
		"transfer=arib-std-b67",
		"colormatrix=bt2020nc",
		"-brand mp42",
		"-movflags +faststart",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("hdr args missing %q in %q", want, joined)
		}
	}
}

func TestTranscodeArgsSDR(t *testing.T) {
	joined := strings.Join(TranscodeArgs("in.mov", "out.mp4", StreamInfo{}), " ")

	if !strings.Contains(joined, "-pix_fmt yuvj420p") {
		t.Errorf("sdr args should use yuvj420p: %q", joined)
	}
	if !strings.Contains(joined, "range=full:bframes=2:transfer=bt709:colorprim=smpte432:colormatrix=smpte170m") {
		t.Errorf("sdr args missing full-range x265 params: %q", joined)
	}
	if strings.Contains(joined, "hdr10") {
		t.Errorf("sdr args must not carry hdr10 params: %q", joined)
	}
}

func TestRemuxWithIdentityArgs(t *testing.T) {
	args := RemuxWithIdentityArgs("in.mp4", "out.mov", "0E2AF9DE-4242-4242-4242-C0FFEE000001")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-c copy") {
		t.Errorf("remux must stream copy: %q", joined)
	}
	if !strings.Contains(joined, "com.apple.quicktime.content.identifier=0E2AF9DE-4242-4242-4242-C0FFEE000001") {
		t.Errorf("remux missing content identifier metadata: %q", joined)
	}
	if args[len(args)-1] != "out.mov" {
		t.Errorf("output must be last arg, got %q", args[len(args)-1])
	}
}

func TestVideoStream(t *testing.T) {
	fake := &fakeRunner{output: []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "pix_fmt": "yuv420p10le",
			 "color_space": "bt2020nc", "color_transfer": "smpte2084",
			 "color_primaries": "bt2020", "bits_per_raw_sample": "10"}
		]
	}`)}
	info, err := NewProber(fake).VideoStream(context.Background(), "clip.mov")
	if err != nil {
		t.Fatalf("VideoStream: %v", err)
	}
	if fake.name != "ffprobe" {
		t.Errorf("tool = %q, want ffprobe", fake.name)
	}
	if info.ColorTransfer != "smpte2084" || info.BitsPerRawSample != "10" {
		t.Errorf("info = %+v", info)
	}
	if !info.IsHDR() {
		t.Error("probed stream should classify as HDR")
	}
}

func TestVideoStreamNoVideo(t *testing.T) {
	fake := &fakeRunner{output: []byte(`{"streams": [{"codec_type": "audio"}]}`)}
	if _, err := NewProber(fake).VideoStream(context.Background(), "clip.mov"); err == nil {
		t.Fatal("expected error when no video stream present")
	}
}

func TestTimedMetadataPackets(t *testing.T) {
	fake := &fakeRunner{output: []byte(`{
		"packets": [
			{"pts_time": "0.000000", "duration_time": "0.015000", "size": "9"},
			{"pts_time": "0.015000", "duration_time": "0.015000", "size": "9"},
			{"pts_time": "not-a-number", "size": "9"},
			{"pts_time": "1.200000", "size": "512"}
		]
	}`)}
	packets, err := NewProber(fake).TimedMetadataPackets(context.Background(), "clip.mov")
	if err != nil {
		t.Fatalf("TimedMetadataPackets: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("len = %d, want 3 (unparseable pts dropped)", len(packets))
	}
	if packets[1].PTS != 0.015 || packets[1].Size != 9 || !packets[1].HasDuration {
		t.Errorf("packet[1] = %+v", packets[1])
	}
	if packets[2].HasDuration {
		t.Errorf("packet without duration_time must report HasDuration=false: %+v", packets[2])
	}
}

// probeAwareRunner serves stream JSON to ffprobe and records the ffmpeg
// invocation that follows.
type probeAwareRunner struct {
	streamJSON string
	ffmpegArgs []string
}

func (p *probeAwareRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if name == "ffprobe" {
		return []byte(p.streamJSON), nil
	}
	if name == "ffmpeg" {
		p.ffmpegArgs = args
	}
	return nil, nil
}

func TestToMP4RemuxesHEVCSource(t *testing.T) {
	fake := &probeAwareRunner{streamJSON: `{"streams": [{"codec_type": "video", "codec_name": "hevc", "pix_fmt": "yuv420p"}]}`}
	tr := NewTranscoder(fake, false)
	if err := tr.ToMP4(context.Background(), "in.mov", "out.mp4"); err != nil {
		t.Fatalf("ToMP4: %v", err)
	}
	joined := strings.Join(fake.ffmpegArgs, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Errorf("hevc source must be stream-copied: %q", joined)
	}
	if strings.Contains(joined, "libx265") {
		t.Errorf("hevc source must not be re-encoded: %q", joined)
	}
}

func TestToMP4TranscodesOtherCodecs(t *testing.T) {
	fake := &probeAwareRunner{streamJSON: `{"streams": [{"codec_type": "video", "codec_name": "h264", "pix_fmt": "yuv420p"}]}`}
	tr := NewTranscoder(fake, false)
	if err := tr.ToMP4(context.Background(), "in.mov", "out.mp4"); err != nil {
		t.Fatalf("ToMP4: %v", err)
	}
	if !strings.Contains(strings.Join(fake.ffmpegArgs, " "), "libx265") {
		t.Errorf("h264 source must be transcoded: %v", fake.ffmpegArgs)
	}
}

func TestToMOVFallsBackToRemux(t *testing.T) {
	fake := &selectiveRunner{failTool: "livewriter"}
	tr := NewTranscoder(fake, true)
	if err := tr.ToMOV(context.Background(), "in.mp4", "out.mov", "ABCD", 15000); err != nil {
		t.Fatalf("ToMOV: %v", err)
	}
	if len(fake.tools) != 2 || fake.tools[0] != "livewriter" || fake.tools[1] != "ffmpeg" {
		t.Errorf("tools invoked = %v, want [livewriter ffmpeg]", fake.tools)
	}
}

func TestToMOVSkipsLiveWriterWhenAbsent(t *testing.T) {
	fake := &selectiveRunner{}
	tr := NewTranscoder(fake, false)
	if err := tr.ToMOV(context.Background(), "in.mp4", "out.mov", "ABCD", 15000); err != nil {
		t.Fatalf("ToMOV: %v", err)
	}
	if len(fake.tools) != 1 || fake.tools[0] != "ffmpeg" {
		t.Errorf("tools invoked = %v, want [ffmpeg]", fake.tools)
	}
}

type selectiveRunner struct {
	failTool string
	tools    []string
}

func (s *selectiveRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.tools = append(s.tools, name)
	if name == s.failTool {
		return nil, errors.New("tool failed")
	}
	return nil, nil
}
