package fomod

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// xmlDeclEncoding matches the encoding attribute of an XML declaration
var xmlDeclEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding\s*=\s*["']([A-Za-z0-9._\-]+)["']`)

// DetectEncoding guesses the text encoding of an XML document. A byte order
// mark wins, then the XML declaration, then UTF-8 validity. Anything that
// cannot be identified is treated as UTF-8.
func DetectEncoding(data []byte) (encoding.Encoding, string) {
	enc, name, certain := charset.DetermineEncoding(data, "text/xml")
	if certain {
		return enc, name
	}

	// UTF-16 files without a BOM still have NUL bytes next to the ASCII '<'
	if len(data) >= 2 {
		switch {
		case data[0] == '<' && data[1] == 0:
			return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le"
		case data[0] == 0 && data[1] == '<':
			return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be"
		}
	}

	if m := xmlDeclEncoding.FindSubmatch(data); m != nil {
		if declared, declaredName := charset.Lookup(string(m[1])); declared != nil {
			return declared, declaredName
		}
	}

	if name == "utf-8" {
		return enc, name
	}
	return unicode.UTF8, "utf-8"
}

// DecodeText converts an XML document of any supported encoding to UTF-8
func DecodeText(data []byte) ([]byte, error) {
	enc, name := DetectEncoding(data)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(enc.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("decoding %s text: %w", name, err)
	}
	return decoded, nil
}
