package compiler

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// DecodeText decodes source bytes as UTF-8, honouring a UTF-8 or UTF-16 byte order mark.
// Invalid UTF-8 is an error rather than being replaced.
func DecodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryModule, "cannot decode UTF-16 source").Build()
		}
		return string(decoded), nil
	}

	data = bytes.TrimPrefix(data, bomUTF8)
	if !utf8.Valid(data) {
		return "", errors.ModuleError("source is not valid UTF-8").Build()
	}
	return string(data), nil
}
