package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detector validates uploads using magic bytes, not the client-supplied filename.
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type of an in-memory upload.
func (d *Detector) Detect(data []byte) (*FileTypeInfo, error) {
	mtype := mimetype.Detect(data)

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("supported", info.Supported).Msg("detected upload type")
	return info, nil
}

// DetectFile detects the file type of a file on disk.
func (d *Detector) DetectFile(path string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)
	return info, nil
}

// classify marks PDF as the only supported upload format. Rejected inputs
// never reach the extraction pipeline.
func (d *Detector) classify(info *FileTypeInfo) {
	switch {
	case info.MIMEType == "application/pdf":
		info.Supported = true
		info.Description = "PDF document"

	case strings.HasPrefix(info.MIMEType, "text/"):
		info.Supported = false
		info.Description = "Plain text file (upload the source PDF instead)"

	default:
		info.Supported = false
		info.Description = "Unsupported format"
	}
}
