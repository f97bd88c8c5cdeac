package jvm

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrReleased is returned when a global reference is used after Release.
var ErrReleased = errors.New("jvm: global reference already released")

// Referent is anything that can be passed to the VM as an object: local refs,
// global refs and resolved classes.
type Referent interface {
	handle() Handle
	validFor(e *Env) error
}

type frame struct {
	env    *Env
	parent *frame
	closed bool
}

// Ref is a local reference. It is valid only inside the Env frame that
// produced it and must not be handed to another goroutine; Promote it to keep
// it longer.
type Ref struct {
	h Handle
	f *frame
}

func (r Ref) handle() Handle { return r.h }

func (r Ref) validFor(e *Env) error {
	if r.h == 0 {
		return nil
	}
	if r.f == nil || r.f.closed || r.f.env != e {
		return ErrStaleRef
	}
	return nil
}

// IsNull reports whether r is the managed null.
func (r Ref) IsNull() bool { return r.h == 0 }

// GlobalRef survives frames and threads until Release.
type GlobalRef struct {
	h        Handle
	released atomic.Bool
}

func (g *GlobalRef) handle() Handle {
	if g == nil {
		return 0
	}
	return g.h
}

func (g *GlobalRef) validFor(*Env) error {
	if g == nil {
		return nil
	}
	if g.released.Load() {
		return ErrReleased
	}
	return nil
}

// IsNull reports whether g holds the managed null.
func (g *GlobalRef) IsNull() bool { return g == nil || g.h == 0 }

// Released reports whether Release already ran.
func (g *GlobalRef) Released() bool { return g.released.Load() }

// Release deletes the global reference. Only the first call reaches the VM.
func (g *GlobalRef) Release(e *Env) {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	if g.h != 0 {
		e.t.DeleteGlobalRef(g.h)
	}
}

// Class is a resolved class held as a global reference by the HandleCache.
type Class struct {
	Name string
	h    Handle
}

func (c *Class) handle() Handle {
	if c == nil {
		return 0
	}
	return c.h
}

func (c *Class) validFor(*Env) error {
	if c == nil || c.h == 0 {
		return ErrNullRef
	}
	return nil
}

// Method is a resolved, signature-checked method.
type Method struct {
	Class  *Class
	Name   string
	Sig    string
	Static bool
	ID     MethodID
	Params []Kind
	Ret    Kind
}

func (m *Method) String() string { return m.Class.Name + "." + m.Name }

// Field is a resolved field.
type Field struct {
	Class  *Class
	Name   string
	Sig    string
	Static bool
	ID     FieldID
	Kind   Kind
}

func (f *Field) String() string { return f.Class.Name + "." + f.Name }

// parseMethodSig splits a JNI method descriptor such as
// "(Ljava/lang/String;I)V" into parameter and return kinds.
func parseMethodSig(sig string) ([]Kind, Kind, error) {
	if len(sig) < 3 || sig[0] != '(' {
		return nil, 0, fmt.Errorf("jvm: malformed method signature %q", sig)
	}
	var params []Kind
	i := 1
	for i < len(sig) && sig[i] != ')' {
		k, n, err := parseFieldSig(sig[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("jvm: malformed method signature %q: %w", sig, err)
		}
		params = append(params, k)
		i += n
	}
	if i >= len(sig) {
		return nil, 0, fmt.Errorf("jvm: malformed method signature %q", sig)
	}
	i++
	if sig[i:] == "V" {
		return params, KindVoid, nil
	}
	ret, n, err := parseFieldSig(sig[i:])
	if err != nil || i+n != len(sig) {
		return nil, 0, fmt.Errorf("jvm: malformed method signature %q", sig)
	}
	return params, ret, nil
}

// parseFieldSig reads one field descriptor and returns its kind and length.
func parseFieldSig(s string) (Kind, int, error) {
	if s == "" {
		return 0, 0, errors.New("empty descriptor")
	}
	switch s[0] {
	case 'Z':
		return KindBoolean, 1, nil
	case 'B':
		return KindByte, 1, nil
	case 'C':
		return KindChar, 1, nil
	case 'S':
		return KindShort, 1, nil
	case 'I':
		return KindInt, 1, nil
	case 'J':
		return KindLong, 1, nil
	case 'F':
		return KindFloat, 1, nil
	case 'D':
		return KindDouble, 1, nil
	case 'L':
		for i := 1; i < len(s); i++ {
			if s[i] == ';' {
				return KindObject, i + 1, nil
			}
		}
		return 0, 0, fmt.Errorf("unterminated class descriptor %q", s)
	case '[':
		_, n, err := parseFieldSig(s[1:])
		if err != nil {
			return 0, 0, err
		}
		return KindObject, n + 1, nil
	default:
		return 0, 0, fmt.Errorf("unknown descriptor %q", s[:1])
	}
}
