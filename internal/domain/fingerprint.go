package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// FingerprintOf computes a stable digest over the canonical subset of an
// event: timestamp, signature, signature id, severity, source and destination
// address, protocol. Two events with identical canonical fields always hash
// identically regardless of how the rest of the line was laid out.
//
// Events without a usable alert descriptor get a random fingerprint so they
// can still be stored instead of silently dropped; callers must tolerate the
// rare accidental duplicate that implies.
func FingerprintOf(e *Event) string {
	if e == nil || e.Alert == nil {
		return randomFingerprint()
	}

	severity := ""
	if e.Alert.Severity != nil {
		severity = strconv.Itoa(*e.Alert.Severity)
	}

	h := sha256.New()
	for _, field := range []string{
		e.Timestamp,
		e.Alert.Signature,
		strconv.FormatInt(e.Alert.SignatureID, 10),
		severity,
		e.SrcIP,
		e.DestIP,
		e.Proto,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

var fingerprintCounter atomic.Uint64

func randomFingerprint() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Degraded but still unique enough within one process.
		return fmt.Sprintf("random-%d-%d",
			time.Now().UnixNano(), fingerprintCounter.Add(1))
	}
	return "random-" + strconv.FormatUint(binary.BigEndian.Uint64(buf[:8]), 16) +
		strconv.FormatUint(binary.BigEndian.Uint64(buf[8:]), 16)
}
