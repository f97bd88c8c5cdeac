package jvmtest

import (
	"errors"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

type localFrame struct {
	refs []jvm.Handle
}

// thread is the JNIEnv of one attached OS thread.
type thread struct {
	vm      *VM
	tid     int
	frames  []*localFrame
	pending *Object
}

func newThread(vm *VM, tid int) *thread {
	return &thread{vm: vm, tid: tid, frames: []*localFrame{{}}}
}

// guardLocked counts calls made while an exception is pending. vm.mu must be
// held.
func (t *thread) guardLocked() {
	if t.pending != nil {
		t.vm.stats.CallsWhilePending++
	}
}

func (t *thread) localLocked(o *Object) jvm.Handle {
	return t.vm.newRefLocked(o, false, t)
}

func (t *thread) throwLocked(class, msg string) {
	t.vm.mu.Unlock()
	exc := t.vm.newThrowable(class, msg)
	t.vm.mu.Lock()
	t.pending = exc
}

func (t *thread) classOfLocked(h jvm.Handle) *Class {
	o := t.vm.derefLocked(t, h)
	if o == nil {
		return nil
	}
	c, _ := o.Value.(*Class)
	return c
}

func (t *thread) FindClass(name string) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	vm.stats.ClassLookups++
	c, ok := vm.classes[name]
	if !ok {
		t.throwLocked("java/lang/NoClassDefFoundError", name)
		return 0
	}
	return t.localLocked(c.obj)
}

func (t *thread) GetObjectClass(obj jvm.Handle) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	o := vm.derefLocked(t, obj)
	if o == nil {
		return 0
	}
	return t.localLocked(o.Class.obj)
}

func (t *thread) IsInstanceOf(obj, class jvm.Handle) bool {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	if obj == 0 {
		return true
	}
	o := vm.derefLocked(t, obj)
	c := t.classOfLocked(class)
	return o != nil && c != nil && o.Class.IsSubclassOf(c)
}

func (t *thread) getMethodID(class jvm.Handle, name, sig string, static bool) jvm.MethodID {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	c := t.classOfLocked(class)
	if c == nil {
		t.throwLocked("java/lang/NullPointerException", "class")
		return 0
	}
	vm.stats.MethodLookups++
	vm.lookups[c.Name+"."+name]++
	m := c.lookupMethod(name, sig, static)
	if m == nil {
		t.throwLocked("java/lang/NoSuchMethodError", name)
		return 0
	}
	return m.id
}

func (t *thread) GetMethodID(class jvm.Handle, name, sig string) jvm.MethodID {
	return t.getMethodID(class, name, sig, false)
}

func (t *thread) GetStaticMethodID(class jvm.Handle, name, sig string) jvm.MethodID {
	return t.getMethodID(class, name, sig, true)
}

func (t *thread) getFieldID(class jvm.Handle, name, sig string, static bool) jvm.FieldID {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	c := t.classOfLocked(class)
	if c == nil {
		t.throwLocked("java/lang/NullPointerException", "class")
		return 0
	}
	vm.stats.FieldLookups++
	f := c.lookupField(name, sig, static)
	if f == nil {
		t.throwLocked("java/lang/NoSuchFieldError", name)
		return 0
	}
	return f.id
}

func (t *thread) GetFieldID(class jvm.Handle, name, sig string) jvm.FieldID {
	return t.getFieldID(class, name, sig, false)
}

func (t *thread) GetStaticFieldID(class jvm.Handle, name, sig string) jvm.FieldID {
	return t.getFieldID(class, name, sig, true)
}

// invoke runs fn without holding vm.mu and turns a returned error into a
// pending exception.
func (t *thread) invoke(fn MethodFunc, c *Call) jvm.Value {
	v, err := fn(c)
	if err != nil {
		var exc *Exception
		if !errors.As(err, &exc) {
			exc = &Exception{Class: "java/lang/RuntimeException", Message: err.Error()}
		}
		o := t.vm.throwableOf(exc)
		t.vm.mu.Lock()
		t.pending = o
		t.vm.mu.Unlock()
		return jvm.Value{}
	}
	return v
}

func (t *thread) NewObject(class jvm.Handle, ctor jvm.MethodID, args []jvm.Value) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	t.guardLocked()
	c := t.classOfLocked(class)
	m := vm.methods[ctor]
	if c == nil || m == nil || m.name != "<init>" {
		t.throwLocked("java/lang/InstantiationError", "bad constructor")
		vm.mu.Unlock()
		return 0
	}
	vm.mu.Unlock()

	o := &Object{Class: c}
	t.invoke(m.fn, &Call{VM: vm, Class: c, This: o, Args: args, t: t})

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if t.pending != nil {
		return 0
	}
	return t.localLocked(o)
}

func (t *thread) CallMethod(ret jvm.Kind, obj jvm.Handle, mid jvm.MethodID, args []jvm.Value) jvm.Value {
	vm := t.vm
	vm.mu.Lock()
	t.guardLocked()
	o := vm.derefLocked(t, obj)
	m := vm.methods[mid]
	if o == nil || m == nil {
		t.throwLocked("java/lang/NullPointerException", "receiver")
		vm.mu.Unlock()
		return jvm.Value{}
	}
	impl := o.Class.lookupMethod(m.name, m.sig, false)
	if impl == nil {
		impl = m
	}
	vm.mu.Unlock()

	v := t.invoke(impl.fn, &Call{VM: vm, Class: o.Class, This: o, Args: args, t: t})
	v.Kind = ret
	return v
}

func (t *thread) CallStaticMethod(ret jvm.Kind, class jvm.Handle, mid jvm.MethodID, args []jvm.Value) jvm.Value {
	vm := t.vm
	vm.mu.Lock()
	t.guardLocked()
	c := t.classOfLocked(class)
	m := vm.methods[mid]
	if c == nil || m == nil || !m.static {
		t.throwLocked("java/lang/IncompatibleClassChangeError", "not a static method")
		vm.mu.Unlock()
		return jvm.Value{}
	}
	vm.mu.Unlock()

	v := t.invoke(m.fn, &Call{VM: vm, Class: c, Args: args, t: t})
	v.Kind = ret
	return v
}

func (t *thread) fieldValueLocked(kind jvm.Kind, v any) jvm.Value {
	switch x := v.(type) {
	case *Object:
		return jvm.Value{Kind: kind, L: t.localLocked(x)}
	case jvm.Value:
		x.Kind = kind
		return x
	default:
		return jvm.Value{Kind: kind}
	}
}

func (t *thread) GetField(kind jvm.Kind, obj jvm.Handle, fid jvm.FieldID) jvm.Value {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	o := vm.derefLocked(t, obj)
	f := vm.fields[fid]
	if o == nil || f == nil {
		t.throwLocked("java/lang/NullPointerException", "field receiver")
		return jvm.Value{}
	}
	vm.mu.Unlock()
	v := o.Get(f.name)
	vm.mu.Lock()
	return t.fieldValueLocked(kind, v)
}

func (t *thread) GetStaticField(kind jvm.Kind, class jvm.Handle, fid jvm.FieldID) jvm.Value {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	f := vm.fields[fid]
	if f == nil || !f.static {
		t.throwLocked("java/lang/IncompatibleClassChangeError", "not a static field")
		return jvm.Value{}
	}
	return t.fieldValueLocked(kind, f.class.statics[f.name])
}

func (t *thread) NewString(chars []uint16) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	u := make([]uint16, len(chars))
	copy(u, chars)
	return t.localLocked(&Object{Class: vm.classes["java/lang/String"], Value: u})
}

func (t *thread) stringLocked(s jvm.Handle) []uint16 {
	o := t.vm.derefLocked(t, s)
	if o == nil {
		t.throwLocked("java/lang/NullPointerException", "string")
		return nil
	}
	u, _ := o.Value.([]uint16)
	return u
}

func (t *thread) StringLength(s jvm.Handle) int {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	return len(t.stringLocked(s))
}

func (t *thread) StringRegion(s jvm.Handle, dst []uint16) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	u := t.stringLocked(s)
	if len(dst) > len(u) {
		t.throwLocked("java/lang/StringIndexOutOfBoundsException", "region")
		return
	}
	copy(dst, u)
}

func (t *thread) NewByteArray(n int) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	t.guardLocked()
	if n < 0 {
		t.throwLocked("java/lang/NegativeArraySizeException", "")
		return 0
	}
	return t.localLocked(&Object{Class: vm.classes["[B"], Value: make([]byte, n)})
}

func (t *thread) bytesLocked(arr jvm.Handle, start, n int) []byte {
	o := t.vm.derefLocked(t, arr)
	if o == nil {
		t.throwLocked("java/lang/NullPointerException", "array")
		return nil
	}
	b, _ := o.Value.([]byte)
	if start < 0 || start+n > len(b) {
		t.throwLocked("java/lang/ArrayIndexOutOfBoundsException", "region")
		return nil
	}
	return b[start : start+n]
}

func (t *thread) SetByteArrayRegion(arr jvm.Handle, start int, src []byte) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	if b := t.bytesLocked(arr, start, len(src)); b != nil {
		copy(b, src)
	}
}

func (t *thread) GetByteArrayRegion(arr jvm.Handle, start int, dst []byte) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	if b := t.bytesLocked(arr, start, len(dst)); b != nil {
		copy(dst, b)
	}
}

func (t *thread) ArrayLength(arr jvm.Handle) int {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	o := t.vm.derefLocked(t, arr)
	if o == nil {
		return 0
	}
	switch v := o.Value.(type) {
	case []byte:
		return len(v)
	case []*Object:
		return len(v)
	default:
		return 0
	}
}

func (t *thread) ObjectArrayElement(arr jvm.Handle, i int) jvm.Handle {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	o := t.vm.derefLocked(t, arr)
	if o == nil {
		t.throwLocked("java/lang/NullPointerException", "array")
		return 0
	}
	elems, _ := o.Value.([]*Object)
	if i < 0 || i >= len(elems) {
		t.throwLocked("java/lang/ArrayIndexOutOfBoundsException", "index")
		return 0
	}
	return t.localLocked(elems[i])
}

func (t *thread) ExceptionCheck() bool {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return t.pending != nil
}

func (t *thread) ExceptionOccurred() jvm.Handle {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return t.localLocked(t.pending)
}

func (t *thread) ExceptionClear() {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.pending = nil
}

func (t *thread) PushLocalFrame(int) bool {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.guardLocked()
	t.frames = append(t.frames, &localFrame{})
	return true
}

func (t *thread) PopLocalFrame(result jvm.Handle) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(t.frames) <= 1 {
		vm.stats.FrameUnderflows++
		return 0
	}
	keep := vm.derefLocked(t, result)
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	for _, h := range top.refs {
		delete(vm.refs, h)
	}
	return t.localLocked(keep)
}

func (t *thread) NewGlobalRef(obj jvm.Handle) jvm.Handle {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	o := vm.derefLocked(t, obj)
	return vm.newRefLocked(o, true, nil)
}

func (t *thread) DeleteGlobalRef(obj jvm.Handle) {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	r, ok := vm.refs[obj]
	if !ok || !r.global {
		vm.stats.DoubleDeletes++
		return
	}
	delete(vm.refs, obj)
}

func (t *thread) DeleteLocalRef(obj jvm.Handle) {
	vm := t.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()
	r, ok := vm.refs[obj]
	if !ok || r.global || r.owner != t {
		vm.stats.InvalidRefs++
		return
	}
	delete(vm.refs, obj)
}
