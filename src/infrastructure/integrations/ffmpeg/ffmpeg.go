package ffmpeg

import (
	"context"

	"clipsmith/src/infrastructure/execx"
)

// FFmpeg wraps the local ffmpeg binary.
type FFmpeg struct {
	binary string
	runner execx.Runner
}

func New(binary string, runner execx.Runner) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary: binary,
		runner: runner,
	}
}

// Trim cuts [start, end] out of input into output using stream copy. Cuts
// land on keyframe boundaries; the trade is speed and zero quality loss.
func (f *FFmpeg) Trim(ctx context.Context, input, output, start, end string) error {
	return f.runner.Run(ctx, f.binary,
		"-y",
		"-i", input,
		"-ss", start,
		"-to", end,
		"-c", "copy",
		output,
	)
}

// ExtractFrame writes the single frame at timecode to output.
func (f *FFmpeg) ExtractFrame(ctx context.Context, input, output, timecode string) error {
	return f.runner.Run(ctx, f.binary,
		"-y",
		"-i", input,
		"-ss", timecode,
		"-vframes", "1",
		output,
	)
}
