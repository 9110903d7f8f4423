package internal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
)

func BytesToUInt64LittleEndian(b [8]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

func UInt64ToBytesLittleEndian(i uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return b
}

func BytesToUInt32LittleEndian(b [4]byte) uint32 {
	return binary.LittleEndian.Uint32(b[:])
}

func UInt32ToBytesLittleEndian(i uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], i)
	return b
}

func SerializeToString(data interface{}) (string, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(data); err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}
	return buf.String(), nil
}

func DeserializeFromString(data string, out interface{}) (err error) {
	buf := bytes.NewBufferString(data)
	decoder := gob.NewDecoder(buf)
	if err = decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	return nil
}

func StringToHex(s string) string {
	return hex.EncodeToString([]byte(s))
}

func HexToString(s string) (string, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
