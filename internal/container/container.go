// Package container handles the Motion Photo composite layout: a static
// image followed immediately by an MP4, with the video byte length declared
// in the image's metadata.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/qiyuan-z/livemotion/internal/detect"
	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

// ErrNotAMotionPhoto marks files whose metadata carries no embedded video
// length. Soft: the caller reports it as a per-file failure message.
var ErrNotAMotionPhoto = errors.New("not a motion photo: no embedded video length tag")

// CorruptError reports a declared video length that disagrees with the bytes
// actually present, which happens when the offset tag is stale or the file
// was truncated.
type CorruptError struct {
	Path     string
	Declared int64
	Actual   int64
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt motion photo %s: declared video length %d, actual trailing bytes %d",
		e.Path, e.Declared, e.Actual)
}

// Split reads a composite file and returns the static image bytes and the
// trailing video bytes. The declared length must satisfy 0 < v < fileSize
// and match the trailing byte count exactly.
func Split(ctx context.Context, det *detect.Detector, path string) (static, video []byte, err error) {
	videoLen, ok, err := det.VideoOffset(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if !ok || videoLen <= 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAMotionPhoto, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	fileSize := int64(len(data))
	if videoLen >= fileSize {
		return nil, nil, &CorruptError{Path: path, Declared: videoLen, Actual: fileSize}
	}

	staticSize := fileSize - videoLen
	static = append([]byte(nil), data[:staticSize]...)
	video = append([]byte(nil), data[staticSize:]...)
	if int64(len(video)) != videoLen {
		return nil, nil, &CorruptError{Path: path, Declared: videoLen, Actual: int64(len(video))}
	}
	return static, video, nil
}

// SplitToFiles splits path into a static image file and a video file.
func SplitToFiles(ctx context.Context, det *detect.Detector, path, outImage, outVideo string) error {
	static, video, err := Split(ctx, det, path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outImage, static, 0o644); err != nil {
		return err
	}
	return os.WriteFile(outVideo, video, 0o644)
}

// Assembler writes Motion Photo composites. Tag injection happens on the
// bare image before the video is appended: exiftool rewrites the file and
// would tear the binary boundary if the opaque payload were already there.
type Assembler struct {
	tags *mediatag.Store
}

func NewAssembler(tags *mediatag.Store) *Assembler {
	return &Assembler{tags: tags}
}

// Assemble injects the motion tags into imagePath (using the final byte size
// of videoPath, never an estimate) and concatenates both into outPath.
func (a *Assembler) Assemble(ctx context.Context, outPath, imagePath, videoPath string, timestampUs int64) error {
	videoLen, err := fsutil.FileSize(videoPath)
	if err != nil {
		return err
	}
	if videoLen <= 0 {
		return fmt.Errorf("assemble %s: empty video %s", outPath, videoPath)
	}
	if err := a.InjectMotionTags(ctx, imagePath, videoLen, timestampUs); err != nil {
		return err
	}
	return concat(outPath, imagePath, videoPath)
}

// InjectMotionTags writes both tag schemes plus the Exif vendor flags, so
// readers that only know one scheme still find the video. Scheme A is the
// single-offset MicroVideo layout, scheme B the two-entry container
// directory.
func (a *Assembler) InjectMotionTags(ctx context.Context, imagePath string, videoLen, timestampUs int64) error {
	assignments := []string{
		// Exif vendor flags
		"-Exif:MicroVideo=1",
		"-Exif:EmbeddedVideo=1",
		"-Exif:XiaomiMicroVideo=1",
		// Scheme A: single offset
		"-XMP-GCamera:MicroVideo=1",
		"-XMP-GCamera:MicroVideoVersion=1",
		fmt.Sprintf("-XMP-GCamera:MicroVideoOffset=%d", videoLen),
		fmt.Sprintf("-XMP-GCamera:MicroVideoPresentationTimestampUs=%d", timestampUs),
		"-XMP-GCamera:MotionPhoto=1",
		"-XMP-GCamera:MotionPhotoVersion=1",
		fmt.Sprintf("-XMP-GCamera:MotionPhotoPresentationTimestampUs=%d", timestampUs),
		// Scheme B: container directory
		"-XMP-Container:Directory0Mime=image/jpeg",
		"-XMP-Container:Directory0Semantic=Primary",
		"-XMP-Container:Directory1Mime=video/mp4",
		"-XMP-Container:Directory1Semantic=MotionPhoto",
		fmt.Sprintf("-XMP-Container:Directory1Length=%d", videoLen),
		"-XMP-Container:Directory1Padding=0",
	}
	return a.tags.Write(ctx, imagePath, assignments...)
}

// StripMotionTags removes the motion tag schemes, used when the static image
// is carried forward into a format with no trailing video.
var StripMotionTags = []string{
	"-MicroVideo=",
	"-EmbeddedVideo=",
	"-XiaomiMicroVideo=",
	"-XMP-GCamera:MicroVideo=",
	"-XMP-GCamera:MicroVideoVersion=",
	"-XMP-GCamera:MicroVideoOffset=",
	"-XMP-GCamera:MicroVideoPresentationTimestampUs=",
	"-XMP-GCamera:MotionPhoto=",
	"-XMP-GCamera:MotionPhotoVersion=",
	"-XMP-Container:Directory=",
}

func concat(outPath string, parts ...string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, p := range parts {
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return out.Sync()
}
