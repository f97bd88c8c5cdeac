package jvmtest

import (
	"fmt"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

func bootstrap(vm *VM) {
	vm.mu.Lock()
	object := vm.defineLocked("java/lang/Object", "")
	meta := vm.defineLocked("java/lang/Class", "")
	object.obj = &Object{Class: meta, Value: object}
	meta.obj = &Object{Class: meta, Value: meta}
	vm.defineLocked("java/lang/String", "")
	vm.defineLocked("[B", "")
	vm.defineLocked("[Ljava/lang/Object;", "")
	vm.defineLocked("[Ljava/lang/String;", "[Ljava/lang/Object;")

	for _, c := range [][2]string{
		{"java/lang/Throwable", ""},
		{"java/lang/Exception", "java/lang/Throwable"},
		{"java/lang/Error", "java/lang/Throwable"},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
		{"java/lang/LinkageError", "java/lang/Error"},
		{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
		{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
		{"java/lang/InstantiationError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
		{"java/io/IOException", "java/lang/Exception"},
		{"java/io/FileNotFoundException", "java/io/IOException"},
		{"java/net/MalformedURLException", "java/io/IOException"},
		{"java/io/InputStream", ""},
		{"java/io/Reader", ""},
	} {
		vm.defineLocked(c[0], c[1])
	}
	vm.mu.Unlock()

	noop := func(*Call) (jvm.Value, error) { return Void, nil }

	object.
		Method("<init>", "()V", noop).
		Method("toString", "()Ljava/lang/String;", func(c *Call) (jvm.Value, error) {
			return c.Str(fmt.Sprintf("%s@%p", dotted(c.This.Class.Name), c.This)), nil
		})

	meta.Method("getName", "()Ljava/lang/String;", func(c *Call) (jvm.Value, error) {
		cls, _ := c.This.Value.(*Class)
		if cls == nil {
			return jvm.Value{}, Throw("java/lang/IllegalStateException", "not a class object")
		}
		return c.Str(dotted(cls.Name)), nil
	})

	vm.Class("java/lang/String").
		Method("toString", "()Ljava/lang/String;", func(c *Call) (jvm.Value, error) {
			return c.Ref(c.This), nil
		}).
		Method("length", "()I", func(c *Call) (jvm.Value, error) {
			u, _ := c.This.Value.([]uint16)
			return Int(int32(len(u))), nil
		})

	vm.Class("java/lang/Throwable").
		Method("<init>", "()V", noop).
		Method("<init>", "(Ljava/lang/String;)V", func(c *Call) (jvm.Value, error) {
			if o := c.Arg(0); o != nil {
				c.This.Value = o.String()
			}
			return Void, nil
		}).
		Method("getMessage", "()Ljava/lang/String;", func(c *Call) (jvm.Value, error) {
			msg, ok := c.This.Value.(string)
			if !ok {
				return jvm.Null, nil
			}
			return c.Str(msg), nil
		}).
		Method("getCause", "()Ljava/lang/Throwable;", func(c *Call) (jvm.Value, error) {
			cause, _ := c.This.Get("cause").(*Object)
			if cause == nil {
				return jvm.Null, nil
			}
			return c.Ref(cause), nil
		}).
		Method("toString", "()Ljava/lang/String;", func(c *Call) (jvm.Value, error) {
			s := dotted(c.This.Class.Name)
			if msg, ok := c.This.Value.(string); ok {
				s += ": " + msg
			}
			return c.Str(s), nil
		})

	vm.Class("java/io/InputStream").
		Method("close", "()V", noop)
	vm.Class("java/io/Reader").
		Method("close", "()V", noop)
}
