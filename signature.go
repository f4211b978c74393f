package trafficgen

//
// Payload signature (§6 "Wire formats"): a 16-byte little-endian prefix
// every builder embeds so a downstream analyzer can identify and
// sequence frames emitted by this generator.
//

import (
	"encoding/binary"
	"hash/fnv"
	"time"
)

// signatureMagic is the 4-byte magic "VEP1" (0x56455031).
const signatureMagic uint32 = 0x56455031

// signatureLen is the fixed length of the signature in bytes.
const signatureLen = 16

// profileIDHash returns the fnv-1a hash of a profile name, used as the
// 4-byte profile id embedded in the signature.
func profileIDHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// buildSignature encodes the 16-byte signature: magic, profile id, sequence
// number, and the emit time in microseconds modulo 2^32, all little-endian.
func buildSignature(profileName string, seq uint32, emitTime time.Time) []byte {
	buf := make([]byte, signatureLen)
	binary.LittleEndian.PutUint32(buf[0:4], signatureMagic)
	binary.LittleEndian.PutUint32(buf[4:8], profileIDHash(profileName))
	binary.LittleEndian.PutUint32(buf[8:12], seq)
	micros := uint32(emitTime.UnixMicro() & 0xffffffff)
	binary.LittleEndian.PutUint32(buf[12:16], micros)
	return buf
}

// parsedSignature is a decoded signature, used by tests and by the RFC2544
// latency test to recover the emit time embedded in an echoed frame.
type parsedSignature struct {
	Magic       uint32
	ProfileID   uint32
	Seq         uint32
	EmitMicros  uint32
}

// parseSignature decodes a 16-byte signature prefix. ok is false if buf is
// too short or the magic does not match.
func parseSignature(buf []byte) (parsedSignature, bool) {
	if len(buf) < signatureLen {
		return parsedSignature{}, false
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != signatureMagic {
		return parsedSignature{}, false
	}
	return parsedSignature{
		Magic:      magic,
		ProfileID:  binary.LittleEndian.Uint32(buf[4:8]),
		Seq:        binary.LittleEndian.Uint32(buf[8:12]),
		EmitMicros: binary.LittleEndian.Uint32(buf[12:16]),
	}, true
}

// sinceEmit returns the elapsed time since sig's embedded emit time. Both
// sides of the subtraction are kept in the same microseconds-modulo-2^32
// space the signature was built in (EmitMicros is not an absolute Unix
// timestamp), so unsigned wraparound still yields the correct delta as long
// as the true elapsed time stays under about 71 minutes.
func sinceEmit(sig parsedSignature) time.Duration {
	nowMicros := uint32(time.Now().UnixMicro() & 0xffffffff)
	deltaMicros := nowMicros - sig.EmitMicros
	return time.Duration(deltaMicros) * time.Microsecond
}
