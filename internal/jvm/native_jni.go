//go:build cgo && jni

package jvm

/*
#cgo linux LDFLAGS: -ldl
#cgo darwin LDFLAGS: -ldl

#include <jni.h>
#include <dlfcn.h>
#include <stdlib.h>

#define BRIDGE_NO_SYMBOL (-100)

typedef jint (JNICALL *bridge_create_fn)(JavaVM **, void **, void *);
typedef jint (JNICALL *bridge_created_fn)(JavaVM **, jsize, jsize *);

static void *bridge_lib;

static const char *bridge_open(const char *path) {
	bridge_lib = dlopen(path, RTLD_NOW | RTLD_GLOBAL);
	if (bridge_lib == NULL) {
		return dlerror();
	}
	return NULL;
}

static jint bridge_create(char **opts, int n, jboolean ignore, JavaVM **vm) {
	bridge_create_fn create = (bridge_create_fn)dlsym(bridge_lib, "JNI_CreateJavaVM");
	if (create == NULL) {
		return BRIDGE_NO_SYMBOL;
	}
	JavaVMOption *options = NULL;
	if (n > 0) {
		options = (JavaVMOption *)calloc((size_t)n, sizeof(JavaVMOption));
		if (options == NULL) {
			return JNI_ENOMEM;
		}
		for (int i = 0; i < n; i++) {
			options[i].optionString = opts[i];
		}
	}
	JavaVMInitArgs args;
	args.version = JNI_VERSION_1_8;
	args.nOptions = n;
	args.options = options;
	args.ignoreUnrecognized = ignore;
	JNIEnv *env = NULL;
	jint rc = create(vm, (void **)&env, &args);
	free(options);
	return rc;
}

static jint bridge_existing(JavaVM **vm) {
	bridge_created_fn created = (bridge_created_fn)dlsym(bridge_lib, "JNI_GetCreatedJavaVMs");
	if (created == NULL) {
		return BRIDGE_NO_SYMBOL;
	}
	jsize count = 0;
	jint rc = created(vm, 1, &count);
	if (rc == JNI_OK && count == 0) {
		return JNI_ERR;
	}
	return rc;
}

static jint bridge_get_env(JavaVM *vm, JNIEnv **env) {
	return (*vm)->GetEnv(vm, (void **)env, JNI_VERSION_1_8);
}

static jint bridge_attach(JavaVM *vm, JNIEnv **env) {
	return (*vm)->AttachCurrentThread(vm, (void **)env, NULL);
}

static jint bridge_detach(JavaVM *vm) {
	return (*vm)->DetachCurrentThread(vm);
}

static jint bridge_destroy(JavaVM *vm) {
	return (*vm)->DestroyJavaVM(vm);
}

static jobject b_find_class(JNIEnv *env, const char *name) {
	return (*env)->FindClass(env, name);
}

static jobject b_get_object_class(JNIEnv *env, jobject o) {
	return (*env)->GetObjectClass(env, o);
}

static jboolean b_is_instance_of(JNIEnv *env, jobject o, jobject c) {
	return (*env)->IsInstanceOf(env, o, (jclass)c);
}

static jmethodID b_get_method_id(JNIEnv *env, jobject c, const char *n, const char *s) {
	return (*env)->GetMethodID(env, (jclass)c, n, s);
}

static jmethodID b_get_static_method_id(JNIEnv *env, jobject c, const char *n, const char *s) {
	return (*env)->GetStaticMethodID(env, (jclass)c, n, s);
}

static jfieldID b_get_field_id(JNIEnv *env, jobject c, const char *n, const char *s) {
	return (*env)->GetFieldID(env, (jclass)c, n, s);
}

static jfieldID b_get_static_field_id(JNIEnv *env, jobject c, const char *n, const char *s) {
	return (*env)->GetStaticFieldID(env, (jclass)c, n, s);
}

static jobject b_new_object(JNIEnv *env, jobject c, jmethodID m, const jvalue *a) {
	return (*env)->NewObjectA(env, (jclass)c, m, a);
}

static jvalue b_call(JNIEnv *env, int kind, jobject o, jmethodID m, const jvalue *a) {
	jvalue r;
	r.j = 0;
	switch (kind) {
	case 0: (*env)->CallVoidMethodA(env, o, m, a); break;
	case 1: r.z = (*env)->CallBooleanMethodA(env, o, m, a); break;
	case 2: r.b = (*env)->CallByteMethodA(env, o, m, a); break;
	case 3: r.c = (*env)->CallCharMethodA(env, o, m, a); break;
	case 4: r.s = (*env)->CallShortMethodA(env, o, m, a); break;
	case 5: r.i = (*env)->CallIntMethodA(env, o, m, a); break;
	case 6: r.j = (*env)->CallLongMethodA(env, o, m, a); break;
	case 7: r.f = (*env)->CallFloatMethodA(env, o, m, a); break;
	case 8: r.d = (*env)->CallDoubleMethodA(env, o, m, a); break;
	case 9: r.l = (*env)->CallObjectMethodA(env, o, m, a); break;
	}
	return r;
}

static jvalue b_call_static(JNIEnv *env, int kind, jobject c, jmethodID m, const jvalue *a) {
	jvalue r;
	r.j = 0;
	jclass cls = (jclass)c;
	switch (kind) {
	case 0: (*env)->CallStaticVoidMethodA(env, cls, m, a); break;
	case 1: r.z = (*env)->CallStaticBooleanMethodA(env, cls, m, a); break;
	case 2: r.b = (*env)->CallStaticByteMethodA(env, cls, m, a); break;
	case 3: r.c = (*env)->CallStaticCharMethodA(env, cls, m, a); break;
	case 4: r.s = (*env)->CallStaticShortMethodA(env, cls, m, a); break;
	case 5: r.i = (*env)->CallStaticIntMethodA(env, cls, m, a); break;
	case 6: r.j = (*env)->CallStaticLongMethodA(env, cls, m, a); break;
	case 7: r.f = (*env)->CallStaticFloatMethodA(env, cls, m, a); break;
	case 8: r.d = (*env)->CallStaticDoubleMethodA(env, cls, m, a); break;
	case 9: r.l = (*env)->CallStaticObjectMethodA(env, cls, m, a); break;
	}
	return r;
}

static jvalue b_get_field(JNIEnv *env, int kind, jobject o, jfieldID f) {
	jvalue r;
	r.j = 0;
	switch (kind) {
	case 1: r.z = (*env)->GetBooleanField(env, o, f); break;
	case 2: r.b = (*env)->GetByteField(env, o, f); break;
	case 3: r.c = (*env)->GetCharField(env, o, f); break;
	case 4: r.s = (*env)->GetShortField(env, o, f); break;
	case 5: r.i = (*env)->GetIntField(env, o, f); break;
	case 6: r.j = (*env)->GetLongField(env, o, f); break;
	case 7: r.f = (*env)->GetFloatField(env, o, f); break;
	case 8: r.d = (*env)->GetDoubleField(env, o, f); break;
	case 9: r.l = (*env)->GetObjectField(env, o, f); break;
	}
	return r;
}

static jvalue b_get_static_field(JNIEnv *env, int kind, jobject c, jfieldID f) {
	jvalue r;
	r.j = 0;
	jclass cls = (jclass)c;
	switch (kind) {
	case 1: r.z = (*env)->GetStaticBooleanField(env, cls, f); break;
	case 2: r.b = (*env)->GetStaticByteField(env, cls, f); break;
	case 3: r.c = (*env)->GetStaticCharField(env, cls, f); break;
	case 4: r.s = (*env)->GetStaticShortField(env, cls, f); break;
	case 5: r.i = (*env)->GetStaticIntField(env, cls, f); break;
	case 6: r.j = (*env)->GetStaticLongField(env, cls, f); break;
	case 7: r.f = (*env)->GetStaticFloatField(env, cls, f); break;
	case 8: r.d = (*env)->GetStaticDoubleField(env, cls, f); break;
	case 9: r.l = (*env)->GetStaticObjectField(env, cls, f); break;
	}
	return r;
}

static jobject b_new_string(JNIEnv *env, const jchar *chars, jsize n) {
	return (*env)->NewString(env, chars, n);
}

static jsize b_string_length(JNIEnv *env, jobject s) {
	return (*env)->GetStringLength(env, (jstring)s);
}

static void b_string_region(JNIEnv *env, jobject s, jsize n, jchar *buf) {
	(*env)->GetStringRegion(env, (jstring)s, 0, n, buf);
}

static jobject b_new_byte_array(JNIEnv *env, jsize n) {
	return (*env)->NewByteArray(env, n);
}

static void b_set_byte_region(JNIEnv *env, jobject a, jsize start, jsize n, const jbyte *buf) {
	(*env)->SetByteArrayRegion(env, (jbyteArray)a, start, n, buf);
}

static void b_get_byte_region(JNIEnv *env, jobject a, jsize start, jsize n, jbyte *buf) {
	(*env)->GetByteArrayRegion(env, (jbyteArray)a, start, n, buf);
}

static jsize b_array_length(JNIEnv *env, jobject a) {
	return (*env)->GetArrayLength(env, (jarray)a);
}

static jobject b_object_array_element(JNIEnv *env, jobject a, jsize i) {
	return (*env)->GetObjectArrayElement(env, (jobjectArray)a, i);
}

static jboolean b_exception_check(JNIEnv *env) {
	return (*env)->ExceptionCheck(env);
}

static jobject b_exception_occurred(JNIEnv *env) {
	return (*env)->ExceptionOccurred(env);
}

static void b_exception_clear(JNIEnv *env) {
	(*env)->ExceptionClear(env);
}

static jint b_push_local_frame(JNIEnv *env, jint capacity) {
	return (*env)->PushLocalFrame(env, capacity);
}

static jobject b_pop_local_frame(JNIEnv *env, jobject result) {
	return (*env)->PopLocalFrame(env, result);
}

static jobject b_new_global_ref(JNIEnv *env, jobject o) {
	return (*env)->NewGlobalRef(env, o);
}

static void b_delete_global_ref(JNIEnv *env, jobject o) {
	(*env)->DeleteGlobalRef(env, o);
}

static void b_delete_local_ref(JNIEnv *env, jobject o) {
	(*env)->DeleteLocalRef(env, o);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// NewNativeBackend returns the JNI backend. The JVM library is loaded with
// dlopen when the Runtime first creates the VM.
func NewNativeBackend() Backend {
	return &nativeBackend{}
}

type nativeBackend struct {
	mu sync.Mutex
	vm *C.JavaVM
}

func jniError(op string, rc C.jint) error {
	switch rc {
	case C.JNI_ERR:
		return fmt.Errorf("%s: unknown error", op)
	case C.JNI_EDETACHED:
		return fmt.Errorf("%s: thread detached", op)
	case C.JNI_EVERSION:
		return fmt.Errorf("%s: JNI version not supported", op)
	case C.JNI_ENOMEM:
		return fmt.Errorf("%s: out of memory", op)
	case C.JNI_EEXIST:
		return fmt.Errorf("%s: VM already exists", op)
	case C.JNI_EINVAL:
		return fmt.Errorf("%s: invalid arguments", op)
	case C.BRIDGE_NO_SYMBOL:
		return fmt.Errorf("%s: symbol not exported by library", op)
	default:
		return fmt.Errorf("%s: error code %d", op, int(rc))
	}
}

func (b *nativeBackend) Create(opts Options) error {
	if opts.Library == "" {
		return errors.New("no JVM library configured (set EXTRACTOUS_JVM_LIB or JAVA_HOME)")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cPath := C.CString(opts.Library)
	defer C.free(unsafe.Pointer(cPath))
	if msg := C.bridge_open(cPath); msg != nil {
		return fmt.Errorf("dlopen: %s", C.GoString(msg))
	}

	args := opts.VMArgs()
	cArgs := make([]*C.char, len(args))
	for i, a := range args {
		cArgs[i] = C.CString(a)
	}
	defer func() {
		for _, p := range cArgs {
			C.free(unsafe.Pointer(p))
		}
	}()
	var argv **C.char
	if len(cArgs) > 0 {
		argv = &cArgs[0]
	}
	ignore := C.jboolean(C.JNI_FALSE)
	if opts.IgnoreUnrecognized {
		ignore = C.JNI_TRUE
	}

	var vm *C.JavaVM
	rc := C.bridge_create(argv, C.int(len(cArgs)), ignore, &vm)
	if rc == C.JNI_EEXIST {
		rc = C.bridge_existing(&vm)
		if rc != C.JNI_OK {
			return jniError("JNI_GetCreatedJavaVMs", rc)
		}
	} else if rc != C.JNI_OK {
		return jniError("JNI_CreateJavaVM", rc)
	}
	b.vm = vm
	return nil
}

func (b *nativeBackend) javaVM() (*C.JavaVM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vm == nil {
		return nil, errors.New("no VM")
	}
	return b.vm, nil
}

func (b *nativeBackend) Attach() (Thread, bool, error) {
	vm, err := b.javaVM()
	if err != nil {
		return nil, false, err
	}
	var env *C.JNIEnv
	switch rc := C.bridge_get_env(vm, &env); rc {
	case C.JNI_OK:
		return &nativeThread{env: env}, false, nil
	case C.JNI_EDETACHED:
		if rc := C.bridge_attach(vm, &env); rc != C.JNI_OK {
			return nil, false, jniError("AttachCurrentThread", rc)
		}
		return &nativeThread{env: env}, true, nil
	default:
		return nil, false, jniError("GetEnv", rc)
	}
}

func (b *nativeBackend) Detach() error {
	vm, err := b.javaVM()
	if err != nil {
		return err
	}
	if rc := C.bridge_detach(vm); rc != C.JNI_OK {
		return jniError("DetachCurrentThread", rc)
	}
	return nil
}

func (b *nativeBackend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vm == nil {
		return nil
	}
	rc := C.bridge_destroy(b.vm)
	b.vm = nil
	if rc != C.JNI_OK {
		return jniError("DestroyJavaVM", rc)
	}
	return nil
}

// nativeThread is a JNIEnv pointer. It is only valid on the OS thread that
// obtained it, which the Runtime guarantees by locking the goroutine.
type nativeThread struct {
	env *C.JNIEnv
}

func jobj(h Handle) C.jobject {
	return C.jobject(unsafe.Pointer(uintptr(h)))
}

func handleOf(o C.jobject) Handle {
	return Handle(uintptr(unsafe.Pointer(o)))
}

func jmid(m MethodID) C.jmethodID {
	return C.jmethodID(unsafe.Pointer(uintptr(m)))
}

func jfid(f FieldID) C.jfieldID {
	return C.jfieldID(unsafe.Pointer(uintptr(f)))
}

func toJValues(args []Value) (*C.jvalue, []C.jvalue) {
	if len(args) == 0 {
		return nil, nil
	}
	vals := make([]C.jvalue, len(args))
	for i, a := range args {
		p := unsafe.Pointer(&vals[i])
		switch a.Kind {
		case KindBoolean:
			*(*C.jboolean)(p) = C.jboolean(a.I)
		case KindByte:
			*(*C.jbyte)(p) = C.jbyte(a.I)
		case KindChar:
			*(*C.jchar)(p) = C.jchar(a.I)
		case KindShort:
			*(*C.jshort)(p) = C.jshort(a.I)
		case KindInt:
			*(*C.jint)(p) = C.jint(a.I)
		case KindLong:
			*(*C.jlong)(p) = C.jlong(a.I)
		case KindFloat:
			*(*C.jfloat)(p) = C.jfloat(a.F)
		case KindDouble:
			*(*C.jdouble)(p) = C.jdouble(a.F)
		case KindObject:
			*(*C.jobject)(p) = jobj(a.L)
		}
	}
	return &vals[0], vals
}

func fromJValue(k Kind, v C.jvalue) Value {
	p := unsafe.Pointer(&v)
	switch k {
	case KindBoolean:
		return Value{Kind: k, I: int64(*(*C.jboolean)(p))}
	case KindByte:
		return Value{Kind: k, I: int64(*(*C.jbyte)(p))}
	case KindChar:
		return Value{Kind: k, I: int64(*(*C.jchar)(p))}
	case KindShort:
		return Value{Kind: k, I: int64(*(*C.jshort)(p))}
	case KindInt:
		return Value{Kind: k, I: int64(*(*C.jint)(p))}
	case KindLong:
		return Value{Kind: k, I: int64(*(*C.jlong)(p))}
	case KindFloat:
		return Value{Kind: k, F: float64(*(*C.jfloat)(p))}
	case KindDouble:
		return Value{Kind: k, F: float64(*(*C.jdouble)(p))}
	case KindObject:
		return Value{Kind: k, L: handleOf(*(*C.jobject)(p))}
	default:
		return Value{Kind: KindVoid}
	}
}

func (t *nativeThread) FindClass(name string) Handle {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return handleOf(C.b_find_class(t.env, cName))
}

func (t *nativeThread) GetObjectClass(obj Handle) Handle {
	return handleOf(C.b_get_object_class(t.env, jobj(obj)))
}

func (t *nativeThread) IsInstanceOf(obj, class Handle) bool {
	return C.b_is_instance_of(t.env, jobj(obj), jobj(class)) == C.JNI_TRUE
}

func (t *nativeThread) GetMethodID(class Handle, name, sig string) MethodID {
	cName, cSig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cSig))
	return MethodID(uintptr(unsafe.Pointer(C.b_get_method_id(t.env, jobj(class), cName, cSig))))
}

func (t *nativeThread) GetStaticMethodID(class Handle, name, sig string) MethodID {
	cName, cSig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cSig))
	return MethodID(uintptr(unsafe.Pointer(C.b_get_static_method_id(t.env, jobj(class), cName, cSig))))
}

func (t *nativeThread) GetFieldID(class Handle, name, sig string) FieldID {
	cName, cSig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cSig))
	return FieldID(uintptr(unsafe.Pointer(C.b_get_field_id(t.env, jobj(class), cName, cSig))))
}

func (t *nativeThread) GetStaticFieldID(class Handle, name, sig string) FieldID {
	cName, cSig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cSig))
	return FieldID(uintptr(unsafe.Pointer(C.b_get_static_field_id(t.env, jobj(class), cName, cSig))))
}

func (t *nativeThread) NewObject(class Handle, ctor MethodID, args []Value) Handle {
	argv, vals := toJValues(args)
	h := handleOf(C.b_new_object(t.env, jobj(class), jmid(ctor), argv))
	runtime.KeepAlive(vals)
	return h
}

func (t *nativeThread) CallMethod(ret Kind, obj Handle, m MethodID, args []Value) Value {
	argv, vals := toJValues(args)
	v := C.b_call(t.env, C.int(ret), jobj(obj), jmid(m), argv)
	runtime.KeepAlive(vals)
	return fromJValue(ret, v)
}

func (t *nativeThread) CallStaticMethod(ret Kind, class Handle, m MethodID, args []Value) Value {
	argv, vals := toJValues(args)
	v := C.b_call_static(t.env, C.int(ret), jobj(class), jmid(m), argv)
	runtime.KeepAlive(vals)
	return fromJValue(ret, v)
}

func (t *nativeThread) GetField(kind Kind, obj Handle, f FieldID) Value {
	return fromJValue(kind, C.b_get_field(t.env, C.int(kind), jobj(obj), jfid(f)))
}

func (t *nativeThread) GetStaticField(kind Kind, class Handle, f FieldID) Value {
	return fromJValue(kind, C.b_get_static_field(t.env, C.int(kind), jobj(class), jfid(f)))
}

func (t *nativeThread) NewString(chars []uint16) Handle {
	var p *C.jchar
	if len(chars) > 0 {
		p = (*C.jchar)(unsafe.Pointer(&chars[0]))
	}
	return handleOf(C.b_new_string(t.env, p, C.jsize(len(chars))))
}

func (t *nativeThread) StringLength(s Handle) int {
	return int(C.b_string_length(t.env, jobj(s)))
}

func (t *nativeThread) StringRegion(s Handle, dst []uint16) {
	if len(dst) == 0 {
		return
	}
	C.b_string_region(t.env, jobj(s), C.jsize(len(dst)), (*C.jchar)(unsafe.Pointer(&dst[0])))
}

func (t *nativeThread) NewByteArray(n int) Handle {
	return handleOf(C.b_new_byte_array(t.env, C.jsize(n)))
}

func (t *nativeThread) SetByteArrayRegion(arr Handle, start int, src []byte) {
	if len(src) == 0 {
		return
	}
	C.b_set_byte_region(t.env, jobj(arr), C.jsize(start), C.jsize(len(src)), (*C.jbyte)(unsafe.Pointer(&src[0])))
}

func (t *nativeThread) GetByteArrayRegion(arr Handle, start int, dst []byte) {
	if len(dst) == 0 {
		return
	}
	C.b_get_byte_region(t.env, jobj(arr), C.jsize(start), C.jsize(len(dst)), (*C.jbyte)(unsafe.Pointer(&dst[0])))
}

func (t *nativeThread) ArrayLength(arr Handle) int {
	return int(C.b_array_length(t.env, jobj(arr)))
}

func (t *nativeThread) ObjectArrayElement(arr Handle, i int) Handle {
	return handleOf(C.b_object_array_element(t.env, jobj(arr), C.jsize(i)))
}

func (t *nativeThread) ExceptionCheck() bool {
	return C.b_exception_check(t.env) == C.JNI_TRUE
}

func (t *nativeThread) ExceptionOccurred() Handle {
	return handleOf(C.b_exception_occurred(t.env))
}

func (t *nativeThread) ExceptionClear() {
	C.b_exception_clear(t.env)
}

func (t *nativeThread) PushLocalFrame(capacity int) bool {
	return C.b_push_local_frame(t.env, C.jint(capacity)) == 0
}

func (t *nativeThread) PopLocalFrame(result Handle) Handle {
	return handleOf(C.b_pop_local_frame(t.env, jobj(result)))
}

func (t *nativeThread) NewGlobalRef(obj Handle) Handle {
	return handleOf(C.b_new_global_ref(t.env, jobj(obj)))
}

func (t *nativeThread) DeleteGlobalRef(obj Handle) {
	C.b_delete_global_ref(t.env, jobj(obj))
}

func (t *nativeThread) DeleteLocalRef(obj Handle) {
	C.b_delete_local_ref(t.env, jobj(obj))
}
