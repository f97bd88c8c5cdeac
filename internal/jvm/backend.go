package jvm

import "fmt"

// Handle is an opaque managed object reference (jobject, jclass, jstring,
// jarray). The zero Handle is the managed null.
type Handle uintptr

// MethodID identifies a resolved method (jmethodID). IDs stay valid on every
// thread for as long as the declaring class is loaded.
type MethodID uintptr

// FieldID identifies a resolved field (jfieldID).
type FieldID uintptr

// Kind is the JVM type of a value crossing the boundary.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged jvalue. Integral kinds use I, floating kinds use F and
// references use L.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	L    Handle

	src Referent
}

// Bool builds a boolean argument.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBoolean, I: 1}
	}
	return Value{Kind: KindBoolean}
}

// Int builds an int argument.
func Int(i int32) Value { return Value{Kind: KindInt, I: int64(i)} }

// Long builds a long argument.
func Long(i int64) Value { return Value{Kind: KindLong, I: i} }

// Double builds a double argument.
func Double(f float64) Value { return Value{Kind: KindDouble, F: f} }

// Object builds a reference argument from anything holding a handle.
func Object(r Referent) Value {
	if r == nil {
		return Value{Kind: KindObject}
	}
	return Value{Kind: KindObject, L: r.handle(), src: r}
}

// Null is the managed null reference argument.
var Null = Value{Kind: KindObject}

// AsBool reports the boolean payload.
func (v Value) AsBool() bool { return v.I != 0 }

// AsInt reports the int payload.
func (v Value) AsInt() int32 { return int32(v.I) }

// Backend is the process-level half of the foreign interface: creating the
// VM and binding OS threads to it. The cgo implementation lives in
// native_jni.go; jvmtest provides an in-memory one.
type Backend interface {
	// Create starts the VM. It is called at most once per Runtime.
	Create(opts Options) error
	// Attach returns the calling OS thread's context, attaching the thread
	// first when needed. attached reports whether this call did the attach.
	Attach() (t Thread, attached bool, err error)
	// Detach unbinds the calling OS thread.
	Detach() error
	// Destroy tears the VM down. The VM cannot be created again afterwards.
	Destroy() error
}

// Thread is the per-thread calling context (JNIEnv). Calls follow JNI
// semantics: failures leave a pending exception and return zero values, and
// only the exception functions and reference deletion are safe to call while
// an exception is pending. Env is the only caller; it enforces that rule.
type Thread interface {
	FindClass(name string) Handle
	GetObjectClass(obj Handle) Handle
	IsInstanceOf(obj, class Handle) bool

	GetMethodID(class Handle, name, sig string) MethodID
	GetStaticMethodID(class Handle, name, sig string) MethodID
	GetFieldID(class Handle, name, sig string) FieldID
	GetStaticFieldID(class Handle, name, sig string) FieldID

	NewObject(class Handle, ctor MethodID, args []Value) Handle
	CallMethod(ret Kind, obj Handle, m MethodID, args []Value) Value
	CallStaticMethod(ret Kind, class Handle, m MethodID, args []Value) Value
	GetField(kind Kind, obj Handle, f FieldID) Value
	GetStaticField(kind Kind, class Handle, f FieldID) Value

	NewString(chars []uint16) Handle
	StringLength(s Handle) int
	StringRegion(s Handle, dst []uint16)

	NewByteArray(n int) Handle
	SetByteArrayRegion(arr Handle, start int, src []byte)
	GetByteArrayRegion(arr Handle, start int, dst []byte)
	ArrayLength(arr Handle) int
	ObjectArrayElement(arr Handle, i int) Handle

	ExceptionCheck() bool
	ExceptionOccurred() Handle
	ExceptionClear()

	PushLocalFrame(capacity int) bool
	PopLocalFrame(result Handle) Handle
	NewGlobalRef(obj Handle) Handle
	DeleteGlobalRef(obj Handle)
	DeleteLocalRef(obj Handle)
}
