package recipe

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// DomainSignature is the hash domain for applied-recipe signatures.
// The version suffix allows the encoding to change without colliding.
const DomainSignature = "strata/recipe/v1"

// MarshalCanonical produces a canonical JSON encoding of r.
//
// Differences from json.Marshal:
//  1. Keys are sorted and NFC normalized
//  2. Keep leaves are dropped, along with branches they leave empty
//  3. Numbers use their shortest exact decimal form
//  4. No HTML escaping
//
// Two recipes describing the same end state produce identical bytes.
func MarshalCanonical(r Recipe) ([]byte, error) {
	var buf bytes.Buffer
	compact := r.Compact()
	buf.WriteByte('{')
	for i, arch := range sortedKeys(compact) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, arch); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		comps := compact[arch]
		for j, comp := range sortedKeys(comps) {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(&buf, comp); err != nil {
				return nil, err
			}
			buf.WriteString(":{")
			fields := comps[comp]
			for k, f := range sortedKeys(fields) {
				if k > 0 {
					buf.WriteByte(',')
				}
				if err := writeString(&buf, f); err != nil {
					return nil, err
				}
				buf.WriteByte(':')
				if err := writeValue(&buf, fields[f]); err != nil {
					return nil, fmt.Errorf("%s.%s.%s: %w", arch, comp, f, err)
				}
			}
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Signature returns the domain-separated SHA-256 of r's canonical encoding.
// Format: SHA256(domain + 0x00 + canonical).
func Signature(r Recipe) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSignature))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNumber:
		f, _ := v.Float()
		if f != f {
			return fmt.Errorf("NaN is not representable")
		}
		buf.WriteString(v.Format())
	case KindBool:
		buf.WriteString(v.Format())
	case KindString:
		s, _ := v.Str()
		return writeString(buf, s)
	default:
		buf.WriteString("null")
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
