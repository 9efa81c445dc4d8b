package convert

import "fmt"

// Mode names a batch conversion direction by its input format.
type Mode string

const (
	ModeLIVP Mode = "livp" // .livp archive -> Motion Photo JPG
	ModeHEIC Mode = "heic" // .heic + .mov pair -> Motion Photo JPG
	ModeJPG  Mode = "jpg"  // Motion Photo JPG -> .HEIC + .mov pair
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLIVP, ModeHEIC, ModeJPG:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown conversion type %q (want livp, heic or jpg)", s)
}

// OutputFormat is the name of the format being produced, used for the
// default output subdirectory.
func (m Mode) OutputFormat() string {
	if m == ModeJPG {
		return "heic"
	}
	return "jpg"
}

// Input is one conversion job's input: a primary file and, for paired
// modes, its sidecar video.
type Input struct {
	Primary string
	Sidecar string
}
