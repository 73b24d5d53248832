package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EncodeKey serializes a tuple of cast values into a string usable as a map
// key. Each value is written as typeTag:length:payload, so distinct tuples
// never encode the same way and nulls encode as a value of their own.
func EncodeKey(values []any) string {
	var b strings.Builder
	for _, v := range values {
		var tag string
		var payload []byte
		switch x := v.(type) {
		case nil:
			b.WriteString("nil:0:")
			continue
		case int64:
			tag = "i"
			payload = binary.BigEndian.AppendUint64(nil, uint64(x))
		case float64:
			tag = "f"
			if x == 0 {
				x = 0 // -0 and 0 compare equal in SQL
			}
			payload = binary.BigEndian.AppendUint64(nil, math.Float64bits(x))
		case bool:
			tag = "b"
			if x {
				payload = []byte{1}
			} else {
				payload = []byte{0}
			}
		case string:
			tag = "s"
			payload = []byte(x)
		default:
			tag = fmt.Sprintf("%T", x)
			payload = []byte(fmt.Sprint(x))
		}
		b.WriteString(tag)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(payload)))
		b.WriteByte(':')
		b.Write(payload)
	}
	return b.String()
}
