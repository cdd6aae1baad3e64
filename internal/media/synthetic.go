package media

import (
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

const (
	syntheticFrameRate = 5
	opusFrameDuration  = 20 * time.Millisecond
)

// Synthetic builds a local stream from generated tracks: silent audio and a
// blank video pattern. It lets a headless CLI participant join a room without
// camera or microphone access. Sample sizing respects the applied SendPolicy.
func Synthetic() (*LocalStream, error) {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "gridcall",
	)
	if err != nil {
		return nil, err
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "gridcall",
	)
	if err != nil {
		return nil, err
	}

	s := NewLocalStream(video, audio)

	videoDone := make(chan struct{})
	audioDone := make(chan struct{})
	s.stop = append(s.stop,
		func() { close(videoDone) },
		func() { close(audioDone) },
	)

	go writeBlankVideo(s, video, videoDone)
	go writeSilence(audio, audioDone)

	return s, nil
}

// writeBlankVideo emits a flat test pattern, sized so the stream stays within
// the session send policy's bitrate budget and downscale factor.
func writeBlankVideo(s *LocalStream, track *webrtc.TrackLocalStaticSample, done <-chan struct{}) {
	interval := time.Second / syntheticFrameRate
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		policy := s.Policy()
		size := 1200
		if policy.MaxBitrate > 0 {
			size = policy.MaxBitrate / 8 / syntheticFrameRate
			if policy.ScaleResolutionBy > 1 {
				size /= policy.ScaleResolutionBy * policy.ScaleResolutionBy
			}
			if size < 64 {
				size = 64
			}
		}

		sample := pionmedia.Sample{
			Data:     make([]byte, size),
			Duration: interval,
		}
		if err := track.WriteSample(sample); err != nil {
			return
		}
	}
}

func writeSilence(track *webrtc.TrackLocalStaticSample, done <-chan struct{}) {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	// Minimal opus frame payload; decoders treat it as silence.
	frame := []byte{0xf8, 0xff, 0xfe}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		sample := pionmedia.Sample{Data: frame, Duration: opusFrameDuration}
		if err := track.WriteSample(sample); err != nil {
			return
		}
	}
}
