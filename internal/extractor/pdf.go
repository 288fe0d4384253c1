package extractor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var errNoReadablePages = errors.New("no readable pdf pages")

// pdf concatenates the plain text of every page. A page whose text is not
// valid UTF-8 is reinterpreted as Latin-1; a page that fails to decode at
// all is skipped and counted.
func (e *Extractor) pdf(path string) (string, error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := doc.NumPage()
	unreadable := 0

	for i := 1; i <= totalPages; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			unreadable++
			e.log.WithError(err).WithField("path", path).WithField("page", i).Debug("Unreadable PDF page")
			continue
		}
		if !utf8.ValidString(content) {
			content = decodeLatin1(content)
		}
		sb.WriteString(content)
	}

	if totalPages > 0 && unreadable == totalPages {
		return "", errNoReadablePages
	}
	return sb.String(), nil
}
