package toolchain

import "testing"

func TestParseProbeJSON(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
			{"codec_name": "aac", "codec_type": "audio"}
		],
		"format": {
			"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
			"duration": "12.480000",
			"size": "10485760"
		}
	}`)

	info, err := ParseProbeJSON(data)
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}

	if info.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, expected h264", info.VideoCodec)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("resolution = %dx%d, expected 1920x1080", info.Width, info.Height)
	}
	if info.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q, expected aac", info.AudioCodec)
	}
	if info.Duration != 12.48 {
		t.Errorf("Duration = %v, expected 12.48", info.Duration)
	}
	if info.Size != 10485760 {
		t.Errorf("Size = %d, expected 10485760", info.Size)
	}
}

func TestParseProbeJSONFirstVideoStreamWins(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 2160},
			{"codec_name": "mjpeg", "codec_type": "video", "width": 320, "height": 240}
		],
		"format": {"format_name": "mov"}
	}`)

	info, err := ParseProbeJSON(data)
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}
	if info.VideoCodec != "hevc" || info.Width != 3840 {
		t.Errorf("expected first video stream (hevc 3840w), got %s %dw", info.VideoCodec, info.Width)
	}
}

func TestParseProbeJSONNoVideoStream(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_name": "mp3", "codec_type": "audio"}],
		"format": {"format_name": "mp3", "duration": "240.1"}
	}`)

	info, err := ParseProbeJSON(data)
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}
	if info.VideoCodec != "" {
		t.Errorf("VideoCodec = %q, expected empty for audio-only input", info.VideoCodec)
	}
}

func TestParseProbeJSONInvalid(t *testing.T) {
	if _, err := ParseProbeJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseNumericStrings(t *testing.T) {
	if got := parseInt64(" 42 "); got != 42 {
		t.Errorf("parseInt64 = %d, expected 42", got)
	}
	if got := parseInt64("garbage"); got != 0 {
		t.Errorf("parseInt64(garbage) = %d, expected 0", got)
	}
	if got := parseFloat("1.5"); got != 1.5 {
		t.Errorf("parseFloat = %v, expected 1.5", got)
	}
}
