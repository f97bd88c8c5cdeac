package jvm

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrEnvClosed is returned when an Env is used after its guard was released.
var ErrEnvClosed = errors.New("jvm: env used after its guard was released")

// Env is the marshalling layer over one attached thread. It resolves classes
// and members through the shared HandleCache, converts values in both
// directions and is the single place where pending managed exceptions are
// checked, captured and cleared.
//
// An Env belongs to the goroutine holding its Guard; it is not safe for
// concurrent use.
type Env struct {
	rt  *Runtime
	t   Thread
	top *frame
	log *slog.Logger
}

func newEnv(rt *Runtime, t Thread) *Env {
	return &Env{rt: rt, t: t, log: rt.log}
}

func (e *Env) live() error {
	if e == nil || e.top == nil {
		return ErrEnvClosed
	}
	return nil
}

// PushFrame opens a nested local reference frame.
func (e *Env) PushFrame(capacity int) error {
	if !e.t.PushLocalFrame(capacity) {
		if err := e.check("PushLocalFrame"); err != nil {
			return err
		}
		return errors.New("jvm: PushLocalFrame failed")
	}
	e.top = &frame{env: e, parent: e.top}
	return nil
}

// PopFrame frees every local reference created since the matching PushFrame.
func (e *Env) PopFrame() {
	if e.top == nil {
		return
	}
	e.top.closed = true
	e.t.PopLocalFrame(0)
	e.top = e.top.parent
}

// Frame runs fn inside a nested local frame. Refs created by fn are invalid
// once it returns; convert or Promote anything that must outlive it.
func (e *Env) Frame(fn func() error) error {
	if err := e.live(); err != nil {
		return err
	}
	if err := e.PushFrame(16); err != nil {
		return err
	}
	defer e.PopFrame()
	return fn()
}

func (e *Env) closeAll() {
	for e.top != nil {
		e.PopFrame()
	}
}

func (e *Env) newRef(h Handle) Ref {
	if h == 0 {
		return Ref{}
	}
	return Ref{h: h, f: e.top}
}

// check is the exception choke point. Every call into the VM is followed by
// it before any other call is made.
func (e *Env) check(member string) error {
	if !e.t.ExceptionCheck() {
		return nil
	}
	exc := e.t.ExceptionOccurred()
	e.t.ExceptionClear()
	class, msg, causes := e.describe(exc)
	if exc != 0 {
		e.t.DeleteLocalRef(exc)
	}
	e.log.Debug("managed exception", "member", member, "exception", class, "message", msg, "causes", causes)
	return &InvocationError{Member: member, Class: class, Message: msg, Causes: causes}
}

// clearQuiet drops an exception raised while describing another one.
func (e *Env) clearQuiet() bool {
	if e.t.ExceptionCheck() {
		e.t.ExceptionClear()
		return true
	}
	return false
}

// maxCauseDepth bounds the getCause walk. Chains can be cyclic.
const maxCauseDepth = 8

// describe reads the class name, message and cause classes of a throwable
// that is no longer pending. It bypasses the cache so a failure here cannot
// recurse.
func (e *Env) describe(exc Handle) (class, msg string, causes []string) {
	class = "java.lang.Throwable"
	if exc == 0 {
		return class, "", nil
	}
	t := e.t

	excClass := t.GetObjectClass(exc)
	if e.clearQuiet() || excClass == 0 {
		return class, "", nil
	}
	defer t.DeleteLocalRef(excClass)

	if name := e.className(excClass); name != "" {
		class = name
	}

	getMessage := t.GetMethodID(excClass, "getMessage", "()Ljava/lang/String;")
	if !e.clearQuiet() && getMessage != 0 {
		m := t.CallMethod(KindObject, exc, getMessage, nil)
		if !e.clearQuiet() && m.L != 0 {
			msg = e.rawString(m.L)
			t.DeleteLocalRef(m.L)
		}
	}

	getCause := t.GetMethodID(excClass, "getCause", "()Ljava/lang/Throwable;")
	if e.clearQuiet() || getCause == 0 {
		return class, msg, nil
	}
	cur := exc
	for range maxCauseDepth {
		next := t.CallMethod(KindObject, cur, getCause, nil)
		if e.clearQuiet() || next.L == 0 {
			break
		}
		if cur != exc {
			t.DeleteLocalRef(cur)
		}
		cur = next.L
		name := "java.lang.Throwable"
		if c := t.GetObjectClass(cur); !e.clearQuiet() && c != 0 {
			if n := e.className(c); n != "" {
				name = n
			}
			t.DeleteLocalRef(c)
		}
		causes = append(causes, name)
	}
	if cur != exc {
		t.DeleteLocalRef(cur)
	}
	return class, msg, causes
}

// className returns the binary name of cls, or "" when it cannot be read.
func (e *Env) className(cls Handle) string {
	t := e.t
	classClass := t.GetObjectClass(cls)
	if e.clearQuiet() || classClass == 0 {
		return ""
	}
	defer t.DeleteLocalRef(classClass)
	getName := t.GetMethodID(classClass, "getName", "()Ljava/lang/String;")
	if e.clearQuiet() || getName == 0 {
		return ""
	}
	name := t.CallMethod(KindObject, cls, getName, nil)
	if e.clearQuiet() || name.L == 0 {
		return ""
	}
	defer t.DeleteLocalRef(name.L)
	return e.rawString(name.L)
}

func (e *Env) rawString(h Handle) string {
	n := e.t.StringLength(h)
	if e.clearQuiet() || n <= 0 {
		return ""
	}
	buf := make([]uint16, n)
	e.t.StringRegion(h, buf)
	if e.clearQuiet() {
		return ""
	}
	return decodeUTF16(buf)
}

// Class resolves a class by its JNI name, e.g. "java/io/InputStream".
func (e *Env) Class(name string) (*Class, error) {
	if err := e.live(); err != nil {
		return nil, err
	}
	return e.rt.cache.loadClass(name, func() (*Class, error) {
		h := e.t.FindClass(name)
		if err := e.check("FindClass"); err != nil {
			return nil, &ResolutionError{Class: name, Cause: err}
		}
		if h == 0 {
			return nil, &ResolutionError{Class: name}
		}
		g := e.t.NewGlobalRef(h)
		e.t.DeleteLocalRef(h)
		if g == 0 {
			return nil, &ResolutionError{Class: name, Cause: errors.New("NewGlobalRef returned null")}
		}
		e.log.Debug("resolved class", "class", name)
		return &Class{Name: name, h: g}, nil
	})
}

// Method resolves an instance method (or constructor, name "<init>").
func (e *Env) Method(class, name, sig string) (*Method, error) {
	return e.resolveMethod(memberKey{class: class, name: name, sig: sig})
}

// StaticMethod resolves a static method.
func (e *Env) StaticMethod(class, name, sig string) (*Method, error) {
	return e.resolveMethod(memberKey{class: class, name: name, sig: sig, static: true})
}

func (e *Env) resolveMethod(k memberKey) (*Method, error) {
	if err := e.live(); err != nil {
		return nil, err
	}
	return e.rt.cache.loadMethod(k, func() (*Method, error) {
		params, ret, err := parseMethodSig(k.sig)
		if err != nil {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig, Cause: err}
		}
		cls, err := e.Class(k.class)
		if err != nil {
			return nil, err
		}
		var id MethodID
		if k.static {
			id = e.t.GetStaticMethodID(cls.h, k.name, k.sig)
		} else {
			id = e.t.GetMethodID(cls.h, k.name, k.sig)
		}
		if err := e.check("GetMethodID"); err != nil {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig, Cause: err}
		}
		if id == 0 {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig}
		}
		e.log.Debug("resolved method", "class", k.class, "method", k.name, "signature", k.sig)
		return &Method{Class: cls, Name: k.name, Sig: k.sig, Static: k.static, ID: id, Params: params, Ret: ret}, nil
	})
}

// Field resolves an instance field.
func (e *Env) Field(class, name, sig string) (*Field, error) {
	return e.resolveField(memberKey{class: class, name: name, sig: sig, field: true})
}

// StaticField resolves a static field.
func (e *Env) StaticField(class, name, sig string) (*Field, error) {
	return e.resolveField(memberKey{class: class, name: name, sig: sig, static: true, field: true})
}

func (e *Env) resolveField(k memberKey) (*Field, error) {
	if err := e.live(); err != nil {
		return nil, err
	}
	return e.rt.cache.loadField(k, func() (*Field, error) {
		kind, n, err := parseFieldSig(k.sig)
		if err == nil && n != len(k.sig) {
			err = fmt.Errorf("trailing data in descriptor %q", k.sig)
		}
		if err != nil {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig, Cause: err}
		}
		cls, err := e.Class(k.class)
		if err != nil {
			return nil, err
		}
		var id FieldID
		if k.static {
			id = e.t.GetStaticFieldID(cls.h, k.name, k.sig)
		} else {
			id = e.t.GetFieldID(cls.h, k.name, k.sig)
		}
		if err := e.check("GetFieldID"); err != nil {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig, Cause: err}
		}
		if id == 0 {
			return nil, &ResolutionError{Class: k.class, Member: k.name, Signature: k.sig}
		}
		return &Field{Class: cls, Name: k.name, Sig: k.sig, Static: k.static, ID: id, Kind: kind}, nil
	})
}

func (e *Env) checkArgs(m *Method, args []Value) error {
	if len(args) != len(m.Params) {
		return fmt.Errorf("jvm: %s%s takes %d arguments, got %d", m, m.Sig, len(m.Params), len(args))
	}
	for i, k := range m.Params {
		if args[i].Kind != k {
			return fmt.Errorf("jvm: %s%s argument %d is %s, want %s", m, m.Sig, i, args[i].Kind, k)
		}
		if k == KindObject && args[i].src != nil {
			if err := args[i].src.validFor(e); err != nil {
				return fmt.Errorf("jvm: %s argument %d: %w", m, i, err)
			}
		}
	}
	return nil
}

func (e *Env) receiver(obj Referent, m *Method) (Handle, error) {
	if obj == nil || obj.handle() == 0 {
		return 0, fmt.Errorf("jvm: %s on %w", m, ErrNullRef)
	}
	if err := obj.validFor(e); err != nil {
		return 0, fmt.Errorf("jvm: %s: %w", m, err)
	}
	return obj.handle(), nil
}

// NewObject runs a constructor resolved with Method(class, "<init>", sig).
func (e *Env) NewObject(ctor *Method, args ...Value) (Ref, error) {
	if err := e.live(); err != nil {
		return Ref{}, err
	}
	if ctor.Name != "<init>" || ctor.Static || ctor.Ret != KindVoid {
		return Ref{}, fmt.Errorf("jvm: %s is not a constructor", ctor)
	}
	if err := e.checkArgs(ctor, args); err != nil {
		return Ref{}, err
	}
	h := e.t.NewObject(ctor.Class.h, ctor.ID, args)
	if err := e.check(ctor.String()); err != nil {
		return Ref{}, err
	}
	if h == 0 {
		return Ref{}, fmt.Errorf("jvm: %s returned null", ctor)
	}
	return e.newRef(h), nil
}

// Call invokes an instance method and returns its raw value.
func (e *Env) Call(obj Referent, m *Method, args ...Value) (Value, error) {
	if err := e.live(); err != nil {
		return Value{}, err
	}
	if m.Static {
		return Value{}, fmt.Errorf("jvm: %s is static", m)
	}
	h, err := e.receiver(obj, m)
	if err != nil {
		return Value{}, err
	}
	if err := e.checkArgs(m, args); err != nil {
		return Value{}, err
	}
	v := e.t.CallMethod(m.Ret, h, m.ID, args)
	if err := e.check(m.String()); err != nil {
		return Value{}, err
	}
	v.Kind = m.Ret
	return v, nil
}

// CallStatic invokes a static method and returns its raw value.
func (e *Env) CallStatic(m *Method, args ...Value) (Value, error) {
	if err := e.live(); err != nil {
		return Value{}, err
	}
	if !m.Static {
		return Value{}, fmt.Errorf("jvm: %s is not static", m)
	}
	if err := e.checkArgs(m, args); err != nil {
		return Value{}, err
	}
	v := e.t.CallStaticMethod(m.Ret, m.Class.h, m.ID, args)
	if err := e.check(m.String()); err != nil {
		return Value{}, err
	}
	v.Kind = m.Ret
	return v, nil
}

func (e *Env) wantRet(m *Method, k Kind) error {
	if m.Ret != k {
		return fmt.Errorf("jvm: %s%s returns %s, not %s", m, m.Sig, m.Ret, k)
	}
	return nil
}

// CallObject invokes a method returning a reference.
func (e *Env) CallObject(obj Referent, m *Method, args ...Value) (Ref, error) {
	if err := e.wantRet(m, KindObject); err != nil {
		return Ref{}, err
	}
	v, err := e.Call(obj, m, args...)
	if err != nil {
		return Ref{}, err
	}
	return e.newRef(v.L), nil
}

// CallVoid invokes a method returning void.
func (e *Env) CallVoid(obj Referent, m *Method, args ...Value) error {
	if err := e.wantRet(m, KindVoid); err != nil {
		return err
	}
	_, err := e.Call(obj, m, args...)
	return err
}

// CallBool invokes a method returning boolean.
func (e *Env) CallBool(obj Referent, m *Method, args ...Value) (bool, error) {
	if err := e.wantRet(m, KindBoolean); err != nil {
		return false, err
	}
	v, err := e.Call(obj, m, args...)
	return v.AsBool(), err
}

// CallInt invokes a method returning int.
func (e *Env) CallInt(obj Referent, m *Method, args ...Value) (int32, error) {
	if err := e.wantRet(m, KindInt); err != nil {
		return 0, err
	}
	v, err := e.Call(obj, m, args...)
	return v.AsInt(), err
}

// CallLong invokes a method returning long.
func (e *Env) CallLong(obj Referent, m *Method, args ...Value) (int64, error) {
	if err := e.wantRet(m, KindLong); err != nil {
		return 0, err
	}
	v, err := e.Call(obj, m, args...)
	return v.I, err
}

// CallStaticObject invokes a static method returning a reference.
func (e *Env) CallStaticObject(m *Method, args ...Value) (Ref, error) {
	if err := e.wantRet(m, KindObject); err != nil {
		return Ref{}, err
	}
	v, err := e.CallStatic(m, args...)
	if err != nil {
		return Ref{}, err
	}
	return e.newRef(v.L), nil
}

// GetField reads an instance field.
func (e *Env) GetField(obj Referent, f *Field) (Value, error) {
	if err := e.live(); err != nil {
		return Value{}, err
	}
	if obj == nil || obj.handle() == 0 {
		return Value{}, fmt.Errorf("jvm: %s on %w", f, ErrNullRef)
	}
	if err := obj.validFor(e); err != nil {
		return Value{}, err
	}
	v := e.t.GetField(f.Kind, obj.handle(), f.ID)
	if err := e.check(f.String()); err != nil {
		return Value{}, err
	}
	v.Kind = f.Kind
	return v, nil
}

// GetObjectField reads a reference field.
func (e *Env) GetObjectField(obj Referent, f *Field) (Ref, error) {
	v, err := e.GetField(obj, f)
	if err != nil {
		return Ref{}, err
	}
	return e.newRef(v.L), nil
}

// GetStaticField reads a static field.
func (e *Env) GetStaticField(f *Field) (Value, error) {
	if err := e.live(); err != nil {
		return Value{}, err
	}
	v := e.t.GetStaticField(f.Kind, f.Class.h, f.ID)
	if err := e.check(f.String()); err != nil {
		return Value{}, err
	}
	v.Kind = f.Kind
	return v, nil
}

// IsInstanceOf reports whether obj is an instance of c.
func (e *Env) IsInstanceOf(obj Referent, c *Class) (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	if err := obj.validFor(e); err != nil {
		return false, err
	}
	ok := e.t.IsInstanceOf(obj.handle(), c.h)
	return ok, e.check("IsInstanceOf")
}

// Promote creates a global reference that survives the current frame.
func (e *Env) Promote(obj Referent) (*GlobalRef, error) {
	if err := e.live(); err != nil {
		return nil, err
	}
	if err := obj.validFor(e); err != nil {
		return nil, err
	}
	if obj.handle() == 0 {
		return &GlobalRef{}, nil
	}
	h := e.t.NewGlobalRef(obj.handle())
	if h == 0 {
		if err := e.check("NewGlobalRef"); err != nil {
			return nil, err
		}
		return nil, errors.New("jvm: NewGlobalRef returned null")
	}
	return &GlobalRef{h: h}, nil
}

// Local wraps the reference payload of a raw Value, such as one returned by
// Call or GetStaticField, as a local reference in the current frame.
func (e *Env) Local(v Value) Ref {
	return e.newRef(v.L)
}

// DeleteLocal frees a local reference before its frame ends. r must not be
// used afterwards.
func (e *Env) DeleteLocal(r Ref) {
	if r.h == 0 || r.validFor(e) != nil {
		return
	}
	e.t.DeleteLocalRef(r.h)
}
