package beamdump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Encode renders the dump as a record document in the layout the Python
// McStasScript tooling writes: fields in declaration order, ", " and ": "
// separators, non-ASCII text escaped, and floats that always carry a
// fraction or exponent so they read back as floats. Parameter keys are
// sorted.
func (d *Dump) Encode() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"data_path": `)
	writeString(&buf, d.DataPath)
	buf.WriteString(`, "dump_point": `)
	writeString(&buf, d.DumpPoint)
	buf.WriteString(`, "parameters": `)

	params := d.Parameters
	if params == nil {
		params = map[string]any{}
	}

	if err := writeValue(&buf, params); err != nil {
		return nil, err
	}

	buf.WriteString(`, "run_name": `)
	writeString(&buf, d.RunName)
	buf.WriteString(`, "comment": `)
	writeString(&buf, d.Comment)
	buf.WriteString(`, "time_loaded": `)
	writeString(&buf, d.TimeLoaded)
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// EncodeParameters renders a parameter map the same way Encode does.
func EncodeParameters(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, params); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case string:
		writeString(buf, x)
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(x, 10))
	case json.Number:
		buf.WriteString(x.String())
	case float64:
		s, err := formatFloat(x)
		if err != nil {
			return err
		}

		buf.WriteString(s)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		buf.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}

			writeString(buf, k)
			buf.WriteString(": ")

			if err := writeValue(buf, x[k]); err != nil {
				return err
			}
		}

		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')

		for i, e := range x {
			if i > 0 {
				buf.WriteString(", ")
			}

			if err := writeValue(buf, e); err != nil {
				return err
			}
		}

		buf.WriteByte(']')
	default:
		// Values that are not normalised scalars use their JSON form.
		data, err := json.Marshal(normalizeScalar(x))
		if err != nil {
			return fmt.Errorf("encoding parameter value %v: %w", x, err)
		}

		buf.Write(data)
	}

	return nil
}

// formatFloat writes the shortest representation that reads back to f,
// in fixed notation for exponents -4 through 15 and scientific otherwise.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("encoding parameter value: unsupported float %v", f)
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)

	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil {
		return "", fmt.Errorf("encoding parameter value %v: %w", f, err)
	}

	if exp < -4 || exp >= 16 {
		return sci, nil
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s, nil
}

// writeString quotes s with every character outside printable ASCII
// escaped.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, r1, r2)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}

	buf.WriteByte('"')
}
