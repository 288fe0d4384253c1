package extractor

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// PayloadKind is the extraction strategy chosen for an item.
type PayloadKind int

const (
	KindText PayloadKind = iota
	KindImage
	KindPDF
	KindDOCX
	KindXLSX
	KindPPTX
	KindMedia
	KindArchive
)

func (k PayloadKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindXLSX:
		return "xlsx"
	case KindPPTX:
		return "pptx"
	case KindMedia:
		return "media"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

var extensionKinds = map[string]PayloadKind{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,

	".pdf": KindPDF,

	".docx": KindDOCX,
	".xlsx": KindXLSX,
	".pptx": KindPPTX,

	".mp4":  KindMedia,
	".avi":  KindMedia,
	".mov":  KindMedia,
	".mkv":  KindMedia,
	".wmv":  KindMedia,
	".flv":  KindMedia,
	".webm": KindMedia,
	".mpeg": KindMedia,
	".mpg":  KindMedia,
	".mp3":  KindMedia,
	".wav":  KindMedia,
	".flac": KindMedia,
	".aac":  KindMedia,
	".ogg":  KindMedia,
	".m4a":  KindMedia,

	".zip": KindArchive,
	".rar": KindArchive,
	".tar": KindArchive,
	".tgz": KindArchive,
}

// Classify maps a file name to its payload kind, case-insensitively.
// Unknown extensions are text.
func Classify(name string) PayloadKind {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return KindArchive
	}
	if kind, ok := extensionKinds[filepath.Ext(lower)]; ok {
		return kind
	}
	return KindText
}

// archive container formats
const (
	formatZip   = "zip"
	formatTar   = "tar"
	formatTarGz = "tar.gz"
	formatRar   = "rar"
)

func archiveFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(lower, ".tar"):
		return formatTar
	case strings.HasSuffix(lower, ".rar"):
		return formatRar
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	}

	head, err := readHead(path)
	if err != nil {
		return ""
	}
	switch kind, _ := filetype.Match(head); kind.Extension {
	case "zip":
		return formatZip
	case "tar":
		return formatTar
	case "gz":
		return formatTarGz
	case "rar":
		return formatRar
	}
	return ""
}

// sniff inspects magic bytes of files that carry no extension.
func sniff(path string) PayloadKind {
	head, err := readHead(path)
	if err != nil || len(head) == 0 {
		return KindText
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return KindText
	}
	switch kind.Extension {
	case "pdf":
		return KindPDF
	case "docx":
		return KindDOCX
	case "xlsx":
		return KindXLSX
	case "pptx":
		return KindPPTX
	case "zip", "tar", "gz", "rar":
		return KindArchive
	}
	switch {
	case filetype.IsImage(head):
		return KindImage
	case filetype.IsVideo(head), filetype.IsAudio(head):
		return KindMedia
	}
	return KindText
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 262)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
