package cryptoutil

import "encoding/binary"

const aadRecord = "RECORD"

// RecordAAD binds a sealed record to its storage address and format
// version. Every part is length-prefixed so distinct addresses never
// produce equal AAD.
func RecordAAD(namespace, key string, ver int) []byte {
	return buildAAD(aadRecord, namespace, key, ver)
}

func buildAAD(parts ...any) []byte {
	var res []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			res = binary.BigEndian.AppendUint32(res, uint32(len(v)))
			res = append(res, v...)
		case int:
			res = binary.BigEndian.AppendUint32(res, uint32(v))
		}
	}
	return res
}
