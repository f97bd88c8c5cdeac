// Package jvmtest is an in-memory virtual machine that implements
// jvm.Backend. Classes are declared in Go and methods are Go functions, while
// references, local frames, pending exceptions and thread attachment follow
// JNI rules closely enough to exercise the bridge without a JVM.
//
// Misuse that a real VM would punish with a crash is counted instead (see
// Stats) so tests can assert that it never happens.
package jvmtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// Stats counts backend activity and rule violations.
type Stats struct {
	Creates  int
	Destroys int
	Attaches int
	Detaches int

	ClassLookups  int
	MethodLookups int
	FieldLookups  int

	LiveGlobalRefs int
	LiveLocalRefs  int

	// Violations. All of these stay zero when the bridge behaves.
	DoubleDeletes     int
	CallsWhilePending int
	InvalidRefs       int
	FrameUnderflows   int
}

// VM is the fake runtime. The zero value is not usable; call New.
type VM struct {
	mu sync.Mutex

	classes map[string]*Class
	refs    map[jvm.Handle]*ref
	methods map[jvm.MethodID]*method
	fields  map[jvm.FieldID]*field
	threads map[int]*thread
	nextRef jvm.Handle
	nextID  uintptr

	created    bool
	destroyed  bool
	failCreate error
	failAttach int

	stats   Stats
	lookups map[string]int
}

type ref struct {
	obj    *Object
	global bool
	owner  *thread
}

// New returns a VM with the java.lang and java.io classes the bridge relies
// on already defined.
func New() *VM {
	vm := &VM{
		classes: make(map[string]*Class),
		refs:    make(map[jvm.Handle]*ref),
		methods: make(map[jvm.MethodID]*method),
		fields:  make(map[jvm.FieldID]*field),
		threads: make(map[int]*thread),
		lookups: make(map[string]int),
	}
	bootstrap(vm)
	return vm
}

// FailCreate makes the next Create return err.
func (vm *VM) FailCreate(err error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.failCreate = err
}

// FailAttach makes the next n thread attachments fail.
func (vm *VM) FailAttach(n int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.failAttach = n
}

// Stats returns a snapshot of the counters.
func (vm *VM) Stats() Stats {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s := vm.stats
	for _, r := range vm.refs {
		if r.global {
			s.LiveGlobalRefs++
		} else {
			s.LiveLocalRefs++
		}
	}
	return s
}

// MethodLookups reports how often GetMethodID or GetStaticMethodID was asked
// for class.name.
func (vm *VM) MethodLookups(class, name string) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lookups[class+"."+name]
}

// Create implements jvm.Backend. Like JNI_CreateJavaVM it attaches the
// calling thread.
func (vm *VM) Create(jvm.Options) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.failCreate != nil {
		return vm.failCreate
	}
	if vm.created {
		return errors.New("jvmtest: VM already created")
	}
	vm.created = true
	vm.stats.Creates++
	tid := unix.Gettid()
	vm.threads[tid] = newThread(vm, tid)
	return nil
}

// Attach implements jvm.Backend.
func (vm *VM) Attach() (jvm.Thread, bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.created || vm.destroyed {
		return nil, false, errors.New("jvmtest: no VM")
	}
	if vm.failAttach > 0 {
		vm.failAttach--
		return nil, false, errors.New("jvmtest: attach refused")
	}
	tid := unix.Gettid()
	if t, ok := vm.threads[tid]; ok {
		return t, false, nil
	}
	t := newThread(vm, tid)
	vm.threads[tid] = t
	vm.stats.Attaches++
	return t, true, nil
}

// Detach implements jvm.Backend. Local references owned by the thread die
// with it.
func (vm *VM) Detach() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	tid := unix.Gettid()
	t, ok := vm.threads[tid]
	if !ok {
		return errors.New("jvmtest: thread not attached")
	}
	for h, r := range vm.refs {
		if !r.global && r.owner == t {
			delete(vm.refs, h)
		}
	}
	delete(vm.threads, tid)
	vm.stats.Detaches++
	return nil
}

// Destroy implements jvm.Backend.
func (vm *VM) Destroy() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.destroyed = true
	vm.stats.Destroys++
	return nil
}

// Destroyed reports whether Destroy ran.
func (vm *VM) Destroyed() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.destroyed
}

// AttachedThreads reports how many OS threads are currently attached.
func (vm *VM) AttachedThreads() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.threads)
}

func (vm *VM) newID() uintptr {
	vm.nextID++
	return vm.nextID
}

// newRefLocked registers a reference. vm.mu must be held.
func (vm *VM) newRefLocked(o *Object, global bool, owner *thread) jvm.Handle {
	if o == nil {
		return 0
	}
	vm.nextRef++
	h := vm.nextRef
	vm.refs[h] = &ref{obj: o, global: global, owner: owner}
	if !global && owner != nil && len(owner.frames) > 0 {
		top := owner.frames[len(owner.frames)-1]
		top.refs = append(top.refs, h)
	}
	return h
}

// derefLocked resolves a handle used by t. vm.mu must be held.
func (vm *VM) derefLocked(t *thread, h jvm.Handle) *Object {
	if h == 0 {
		return nil
	}
	r, ok := vm.refs[h]
	if !ok || (!r.global && r.owner != t) {
		vm.stats.InvalidRefs++
		return nil
	}
	return r.obj
}

// Class returns a defined class or nil.
func (vm *VM) Class(name string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.classes[name]
}

// DefineClass declares a class. super is a JNI class name; empty means
// java/lang/Object.
func (vm *VM) DefineClass(name, super string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.defineLocked(name, super)
}

func (vm *VM) defineLocked(name, super string) *Class {
	if c, ok := vm.classes[name]; ok {
		return c
	}
	var sup *Class
	if name != "java/lang/Object" {
		if super == "" {
			super = "java/lang/Object"
		}
		sup = vm.classes[super]
		if sup == nil {
			panic(fmt.Sprintf("jvmtest: superclass %s of %s is not defined", super, name))
		}
	}
	c := &Class{
		Name:    name,
		Super:   sup,
		vm:      vm,
		methods: make(map[string]*method),
		fields:  make(map[string]*field),
		statics: make(map[string]any),
	}
	vm.classes[name] = c
	if meta := vm.classes["java/lang/Class"]; meta != nil {
		c.obj = &Object{Class: meta, Value: c}
	}
	return c
}

// NewObject allocates an instance without running a constructor.
func (vm *VM) NewObject(class string, value any) *Object {
	c := vm.Class(class)
	if c == nil {
		panic("jvmtest: class " + class + " is not defined")
	}
	return &Object{Class: c, Value: value}
}

// NewString allocates a java.lang.String.
func (vm *VM) NewString(s string) *Object {
	return vm.NewObject("java/lang/String", encodeString(s))
}

// NewStringArray allocates a String[].
func (vm *VM) NewStringArray(values []string) *Object {
	elems := make([]*Object, len(values))
	for i, s := range values {
		elems[i] = vm.NewString(s)
	}
	return vm.NewObject("[Ljava/lang/String;", elems)
}

// newThrowable builds an exception object, defining the class on the fly
// as a java.lang.Exception subclass when it is unknown.
func (vm *VM) newThrowable(class, msg string) *Object {
	vm.mu.Lock()
	c := vm.classes[class]
	if c == nil {
		c = vm.defineLocked(class, "java/lang/Exception")
	}
	vm.mu.Unlock()
	o := &Object{Class: c}
	if msg != "" {
		o.Value = msg
	}
	return o
}

// throwableOf builds exc and its cause chain.
func (vm *VM) throwableOf(exc *Exception) *Object {
	o := vm.newThrowable(exc.Class, exc.Message)
	if exc.Cause != nil {
		o.Set("cause", vm.throwableOf(exc.Cause))
	}
	return o
}

func dotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
