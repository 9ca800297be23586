package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"media-curator/internal/logging"
)

// VideoInfo holds the probed properties of a video file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	HasAudio bool    `json:"hasAudio"`
}

// keyframeEdgeOffset keeps sampled frames away from fades and credits at
// the ends of longer videos.
const keyframeEdgeOffset = 10.0

// ProbeVideo retrieves duration, dimensions and stream layout via ffprobe.
func ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
				info.Codec = s.CodecName
			}
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// KeyframeTimestamps returns the sample points for a video of the given
// duration: near the start and end plus the quartile positions, clamped
// into range, deduplicated and sorted. Very short videos collapse to a
// single midpoint sample.
func KeyframeTimestamps(duration float64) []float64 {
	if duration <= 0 {
		return []float64{0}
	}

	candidates := []float64{
		keyframeEdgeOffset,
		duration * 0.25,
		duration * 0.50,
		duration * 0.75,
		duration - keyframeEdgeOffset,
	}

	seen := make(map[int64]bool)
	var out []float64
	for _, ts := range candidates {
		if ts < 0 {
			ts = 0
		}
		if ts > duration {
			ts = duration
		}
		// Dedupe at millisecond precision.
		key := int64(ts * 1000)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ts)
	}
	sort.Float64s(out)
	return out
}

// ExtractFrame writes a single frame of the video at the given timestamp
// as a JPEG at outPath.
func ExtractFrame(ctx context.Context, videoPath string, timestamp float64, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame extraction at %.1fs failed: %w - %s", timestamp, err, stderr.String())
	}
	return nil
}

// SampledFrame is one extracted keyframe image on disk.
type SampledFrame struct {
	Timestamp float64
	Path      string
}

// SampleFrames extracts the standard keyframe set for a video into dir and
// returns the frames in timestamp order. Frames that fail to extract are
// skipped with a warning; an error is returned only when no frame could be
// extracted at all.
func SampleFrames(ctx context.Context, videoPath string, duration float64, dir string) ([]SampledFrame, error) {
	var frames []SampledFrame
	var lastErr error

	for i, ts := range KeyframeTimestamps(duration) {
		outPath := filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", i))
		if err := ExtractFrame(ctx, videoPath, ts, outPath); err != nil {
			logging.Warn("Skipping keyframe at %.1fs of %s: %v", ts, videoPath, err)
			lastErr = err
			continue
		}
		frames = append(frames, SampledFrame{Timestamp: ts, Path: outPath})
	}

	if len(frames) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no keyframes extracted from %s: %w", videoPath, lastErr)
		}
		return nil, fmt.Errorf("no keyframes extracted from %s", videoPath)
	}
	return frames, nil
}

// ExtractAudio writes the video's audio track as 16 kHz mono WAV at
// outPath, the input format speech models expect.
func ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w - %s", err, stderr.String())
	}
	return nil
}
