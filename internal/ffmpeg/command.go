package ffmpeg

import "fmt"

// TranscodeArgs builds the MOV→MP4 HEVC encode. HDR sources keep 10-bit
// samples and signal their color properties through x265; SDR uses the full
// range parameter set known to survive third-party motion photo readers.
func TranscodeArgs(input, output string, info StreamInfo) []string {
	args := []string{
		"-y",
		"-i", input,
		"-c:v", "libx265",
		"-tag:v", "hvc1",
		"-crf", "18",
	}

	if info.IsHDR() {
		args = append(args,
			"-pix_fmt", "yuv420p10le",
			"-x265-params", fmt.Sprintf(
				"range=limited:bframes=2:hdr10=1:repeat-headers=1:colorprim=%s:transfer=%s:colormatrix=%s",
				info.ColorPrimaries, info.ColorTransfer, info.ColorSpace),
		)
	} else {
		args = append(args,
			"-pix_fmt", "yuvj420p",
			"-x265-params", "range=full:bframes=2:transfer=bt709:colorprim=smpte432:colormatrix=smpte170m",
		)
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-brand", "mp42",
		"-movflags", "+faststart",
		output,
	)
	return args
}

// RemuxArgs builds the MP4→MOV stream copy, metadata carried over.
func RemuxArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c", "copy",
		"-map_metadata", "0",
		"-movflags", "+faststart",
		output,
	}
}

// RemuxWithIdentityArgs is the remux with the QuickTime content identifier
// written as container metadata, the cross-platform half of Live Photo
// pairing when no platform video writer is available.
func RemuxWithIdentityArgs(input, output, contentID string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c", "copy",
		"-map_metadata", "0",
		"-metadata", "com.apple.quicktime.content.identifier=" + contentID,
		"-movflags", "+faststart",
		output,
	}
}
