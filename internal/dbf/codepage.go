package dbf

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// languageDrivers maps the LDID byte at offset 29 of the table header to
// a text encoding. Drivers without a matching decoder are left out.
var languageDrivers = map[byte]encoding.Encoding{
	0x01: charmap.CodePage437,
	0x02: charmap.CodePage850,
	0x03: charmap.Windows1252,
	0x08: charmap.CodePage865,
	0x09: charmap.CodePage437,
	0x0A: charmap.CodePage850,
	0x0B: charmap.CodePage437,
	0x0D: charmap.CodePage437,
	0x0E: charmap.CodePage850,
	0x0F: charmap.CodePage437,
	0x10: charmap.CodePage850,
	0x11: charmap.CodePage437,
	0x12: charmap.CodePage850,
	0x13: japanese.ShiftJIS,
	0x14: charmap.CodePage850,
	0x15: charmap.CodePage437,
	0x16: charmap.CodePage850,
	0x17: charmap.CodePage865,
	0x18: charmap.CodePage437,
	0x19: charmap.CodePage437,
	0x1A: charmap.CodePage850,
	0x1B: charmap.CodePage437,
	0x1C: charmap.CodePage863,
	0x1D: charmap.CodePage850,
	0x1F: charmap.CodePage852,
	0x22: charmap.CodePage852,
	0x23: charmap.CodePage852,
	0x24: charmap.CodePage860,
	0x25: charmap.CodePage850,
	0x26: charmap.CodePage866,
	0x37: charmap.CodePage850,
	0x40: charmap.CodePage852,
	0x4D: simplifiedchinese.GBK,
	0x4E: korean.EUCKR,
	0x4F: traditionalchinese.Big5,
	0x57: charmap.Windows1252,
	0x58: charmap.Windows1252,
	0x59: charmap.Windows1252,
	0x64: charmap.CodePage852,
	0x65: charmap.CodePage866,
	0x66: charmap.CodePage865,
	0x78: traditionalchinese.Big5,
	0x79: korean.EUCKR,
	0x7A: simplifiedchinese.GBK,
	0x7B: japanese.ShiftJIS,
	0x7C: charmap.Windows874,
	0x7D: charmap.Windows1255,
	0x7E: charmap.Windows1256,
	0x96: charmap.MacintoshCyrillic,
	0xC8: charmap.Windows1250,
	0xC9: charmap.Windows1251,
	0xCA: charmap.Windows1254,
	0xCB: charmap.Windows1253,
	0xCC: charmap.Windows1257,
}

// EncodingForLanguageDriver returns the encoding for an LDID byte, or nil
// when the driver is unset or unknown
func EncodingForLanguageDriver(ldid byte) encoding.Encoding {
	return languageDrivers[ldid]
}

// EncodingByName resolves a code page name as found in a .cpg file or in
// configuration: IANA names ("UTF-8", "ISO-8859-2"), Windows code page
// numbers ("1252") and ESRI's ISO shorthand ("88591").
func EncodingByName(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty encoding name")
	}
	switch strings.ToUpper(name) {
	case "UTF-8", "UTF8", "65001":
		return unicode.UTF8, nil
	}

	if n, err := strconv.Atoi(name); err == nil {
		switch {
		case n >= 1250 && n <= 1258:
			name = fmt.Sprintf("windows-%d", n)
		case n >= 88591 && n <= 885916:
			name = fmt.Sprintf("ISO-8859-%d", n-88590)
			if n > 88599 {
				name = fmt.Sprintf("ISO-8859-%d", n-885900)
			}
		case n == 936:
			return simplifiedchinese.GBK, nil
		case n == 950:
			return traditionalchinese.Big5, nil
		case n == 932:
			return japanese.ShiftJIS, nil
		case n == 949:
			return korean.EUCKR, nil
		default:
			name = fmt.Sprintf("IBM%d", n)
		}
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}
