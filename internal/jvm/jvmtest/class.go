package jvmtest

import (
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// MethodFunc implements a fake method. Returning an *Exception (or any other
// error, which becomes java.lang.RuntimeException) leaves it pending on the
// calling thread.
type MethodFunc func(c *Call) (jvm.Value, error)

// Class is a fake class.
type Class struct {
	Name  string
	Super *Class

	vm      *VM
	obj     *Object
	methods map[string]*method
	fields  map[string]*field
	statics map[string]any
}

type method struct {
	class  *Class
	name   string
	sig    string
	static bool
	fn     MethodFunc
	id     jvm.MethodID
}

type field struct {
	class  *Class
	name   string
	sig    string
	static bool
	id     jvm.FieldID
}

func memberKey(name, sig string, static bool) string {
	if static {
		return "s:" + name + sig
	}
	return name + sig
}

// Method declares an instance method or, with name "<init>", a constructor.
func (c *Class) Method(name, sig string, fn MethodFunc) *Class {
	return c.declare(name, sig, false, fn)
}

// StaticMethod declares a static method.
func (c *Class) StaticMethod(name, sig string, fn MethodFunc) *Class {
	return c.declare(name, sig, true, fn)
}

func (c *Class) declare(name, sig string, static bool, fn MethodFunc) *Class {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	m := &method{class: c, name: name, sig: sig, static: static, fn: fn, id: jvm.MethodID(c.vm.newID())}
	c.methods[memberKey(name, sig, static)] = m
	c.vm.methods[m.id] = m
	return c
}

// Field declares an instance field.
func (c *Class) Field(name, sig string) *Class {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	f := &field{class: c, name: name, sig: sig, id: jvm.FieldID(c.vm.newID())}
	c.fields[memberKey(name, sig, false)] = f
	c.vm.fields[f.id] = f
	return c
}

// StaticField declares a static field holding v, which is either an *Object
// or a jvm.Value.
func (c *Class) StaticField(name, sig string, v any) *Class {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	f := &field{class: c, name: name, sig: sig, static: true, id: jvm.FieldID(c.vm.newID())}
	c.fields[memberKey(name, sig, true)] = f
	c.vm.fields[f.id] = f
	c.statics[name] = v
	return c
}

// lookupMethod walks the superclass chain. Constructors are not inherited.
// vm.mu must be held.
func (c *Class) lookupMethod(name, sig string, static bool) *method {
	key := memberKey(name, sig, static)
	for k := c; k != nil; k = k.Super {
		if m, ok := k.methods[key]; ok {
			return m
		}
		if name == "<init>" {
			return nil
		}
	}
	return nil
}

func (c *Class) lookupField(name, sig string, static bool) *field {
	key := memberKey(name, sig, static)
	for k := c; k != nil; k = k.Super {
		if f, ok := k.fields[key]; ok {
			return f
		}
	}
	return nil
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// Object is a fake heap object. Value carries the payload: []uint16 for
// strings, []byte for byte[], []*Object for object arrays, *Class for class
// objects, the message for throwables, anything for fake engine types.
type Object struct {
	Class *Class
	Value any

	mu     sync.Mutex
	fields map[string]any
}

// Set stores an instance field value.
func (o *Object) Set(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fields == nil {
		o.fields = make(map[string]any)
	}
	o.fields[name] = v
}

// Get reads an instance field value.
func (o *Object) Get(name string) any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields[name]
}

// String returns the Go value of a java.lang.String object.
func (o *Object) String() string {
	if o == nil {
		return ""
	}
	if u, ok := o.Value.([]uint16); ok {
		return string(utf16.Decode(u))
	}
	return fmt.Sprintf("%s@%p", dotted(o.Class.Name), o)
}

func encodeString(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// Exception is returned by a MethodFunc to throw.
type Exception struct {
	// Class is the JNI name, e.g. "java/io/IOException".
	Class   string
	Message string
	// Cause is reported by getCause.
	Cause *Exception
}

func (e *Exception) Error() string {
	return dotted(e.Class) + ": " + e.Message
}

// Wrap returns a new exception of class whose cause is e.
func (e *Exception) Wrap(class, msg string) *Exception {
	return &Exception{Class: class, Message: msg, Cause: e}
}

// Throw builds an *Exception.
func Throw(class, format string, args ...any) error {
	return &Exception{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Call is the context handed to a MethodFunc.
type Call struct {
	VM    *VM
	Class *Class
	// This is the receiver; nil for static methods.
	This *Object
	Args []jvm.Value

	t *thread
}

// Arg resolves reference argument i.
func (c *Call) Arg(i int) *Object {
	c.VM.mu.Lock()
	defer c.VM.mu.Unlock()
	return c.VM.derefLocked(c.t, c.Args[i].L)
}

// String reads argument i as a Go string. The managed null reads as "".
func (c *Call) String(i int) string {
	o := c.Arg(i)
	if o == nil {
		return ""
	}
	return o.String()
}

// Bytes returns the backing slice of a byte[] argument.
func (c *Call) Bytes(i int) []byte {
	o := c.Arg(i)
	if o == nil {
		return nil
	}
	b, _ := o.Value.([]byte)
	return b
}

// Int reads argument i as an int.
func (c *Call) Int(i int) int32 { return int32(c.Args[i].I) }

// Bool reads argument i as a boolean.
func (c *Call) Bool(i int) bool { return c.Args[i].I != 0 }

// Ref returns o as a new local reference on the calling thread.
func (c *Call) Ref(o *Object) jvm.Value {
	c.VM.mu.Lock()
	defer c.VM.mu.Unlock()
	return jvm.Value{Kind: jvm.KindObject, L: c.VM.newRefLocked(o, false, c.t)}
}

// Str returns a new java.lang.String reference.
func (c *Call) Str(s string) jvm.Value {
	return c.Ref(c.VM.NewString(s))
}

// Invoke calls an instance method of o from inside another method, with
// virtual dispatch. It is how fake engine classes call each other.
func (c *Call) Invoke(o *Object, name, sig string, args ...jvm.Value) (jvm.Value, error) {
	c.VM.mu.Lock()
	m := o.Class.lookupMethod(name, sig, false)
	c.VM.mu.Unlock()
	if m == nil {
		return jvm.Value{}, Throw("java/lang/NoSuchMethodError", "%s.%s%s", dotted(o.Class.Name), name, sig)
	}
	return m.fn(&Call{VM: c.VM, Class: o.Class, This: o, Args: args, t: c.t})
}

// Void is the return value of void methods.
var Void = jvm.Value{Kind: jvm.KindVoid}

// Int returns an int value.
func Int(i int32) jvm.Value { return jvm.Value{Kind: jvm.KindInt, I: int64(i)} }

// Bool returns a boolean value.
func Bool(b bool) jvm.Value {
	if b {
		return jvm.Value{Kind: jvm.KindBoolean, I: 1}
	}
	return jvm.Value{Kind: jvm.KindBoolean}
}
