package jvm

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// The VM stores strings as UTF-16 code units; Go strings are UTF-8.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// utf16Len counts the UTF-16 code units needed for s.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// encodeUTF16 converts s to UTF-16 code units. Invalid UTF-8 sequences become
// U+FFFD. Strings longer than limit units are rejected.
func encodeUTF16(s string, limit int) ([]uint16, error) {
	if len(s) > limit {
		if n := utf16Len(s); n > limit {
			return nil, &EncodingError{Length: n, Limit: limit}
		}
	}
	b, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, &EncodingError{Reason: err.Error()}
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return units, nil
}

// decodeUTF16 converts code units back to UTF-8. Unpaired surrogates become
// U+FFFD.
func decodeUTF16(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	out, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return string(utf8.RuneError)
	}
	return string(out)
}

// NewString creates a managed string from s.
func (e *Env) NewString(s string) (Ref, error) {
	if err := e.live(); err != nil {
		return Ref{}, err
	}
	units, err := encodeUTF16(s, e.rt.opts.MaxArrayLength)
	if err != nil {
		return Ref{}, err
	}
	h := e.t.NewString(units)
	if err := e.check("NewString"); err != nil {
		return Ref{}, err
	}
	if h == 0 {
		return Ref{}, errors.New("jvm: NewString returned null")
	}
	return e.newRef(h), nil
}

// StringArg is NewString packaged as a call argument.
func (e *Env) StringArg(s string) (Value, error) {
	r, err := e.NewString(s)
	if err != nil {
		return Value{}, err
	}
	return Object(r), nil
}

// GoString copies a managed string into Go. The managed null yields "".
func (e *Env) GoString(s Referent) (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	if s == nil || s.handle() == 0 {
		return "", nil
	}
	if err := s.validFor(e); err != nil {
		return "", err
	}
	n := e.t.StringLength(s.handle())
	if err := e.check("GetStringLength"); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]uint16, n)
	e.t.StringRegion(s.handle(), buf)
	if err := e.check("GetStringRegion"); err != nil {
		return "", err
	}
	return decodeUTF16(buf), nil
}

// NewByteArray copies b into a new managed byte[].
func (e *Env) NewByteArray(b []byte) (Ref, error) {
	arr, err := e.AllocByteArray(len(b))
	if err != nil {
		return Ref{}, err
	}
	if len(b) > 0 {
		e.t.SetByteArrayRegion(arr.h, 0, b)
		if err := e.check("SetByteArrayRegion"); err != nil {
			return Ref{}, err
		}
	}
	return arr, nil
}

// AllocByteArray creates a zeroed managed byte[] of length n.
func (e *Env) AllocByteArray(n int) (Ref, error) {
	if err := e.live(); err != nil {
		return Ref{}, err
	}
	if n > e.rt.opts.MaxArrayLength {
		return Ref{}, &EncodingError{Length: n, Limit: e.rt.opts.MaxArrayLength}
	}
	h := e.t.NewByteArray(n)
	if err := e.check("NewByteArray"); err != nil {
		return Ref{}, err
	}
	if h == 0 {
		return Ref{}, errors.New("jvm: NewByteArray returned null")
	}
	return e.newRef(h), nil
}

// ReadByteArray copies len(dst) bytes starting at start out of arr.
func (e *Env) ReadByteArray(arr Referent, start int, dst []byte) error {
	if err := e.live(); err != nil {
		return err
	}
	if err := arr.validFor(e); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	e.t.GetByteArrayRegion(arr.handle(), start, dst)
	return e.check("GetByteArrayRegion")
}

// ArrayLength returns the length of any managed array.
func (e *Env) ArrayLength(arr Referent) (int, error) {
	if err := e.live(); err != nil {
		return 0, err
	}
	if arr == nil || arr.handle() == 0 {
		return 0, ErrNullRef
	}
	if err := arr.validFor(e); err != nil {
		return 0, err
	}
	n := e.t.ArrayLength(arr.handle())
	return n, e.check("GetArrayLength")
}

// ObjectArrayElement returns element i of a managed Object[].
func (e *Env) ObjectArrayElement(arr Referent, i int) (Ref, error) {
	if err := e.live(); err != nil {
		return Ref{}, err
	}
	if err := arr.validFor(e); err != nil {
		return Ref{}, err
	}
	h := e.t.ObjectArrayElement(arr.handle(), i)
	if err := e.check("GetObjectArrayElement"); err != nil {
		return Ref{}, err
	}
	return e.newRef(h), nil
}

// StringArray copies a managed String[] into Go. Null elements become "".
func (e *Env) StringArray(arr Referent) ([]string, error) {
	if arr == nil || arr.handle() == 0 {
		return nil, nil
	}
	n, err := e.ArrayLength(arr)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		el, err := e.ObjectArrayElement(arr, i)
		if err != nil {
			return nil, err
		}
		s, err := e.GoString(el)
		e.DeleteLocal(el)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
