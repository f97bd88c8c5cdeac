package jvm

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	// DefaultMaxArrayLength is the largest array or string most VMs will
	// allocate.
	DefaultMaxArrayLength = math.MaxInt32 - 8
	// DefaultLocalFrameCapacity is the local reference capacity reserved per
	// attach guard.
	DefaultLocalFrameCapacity = 64
)

// Options configure VM creation and the bridge around it.
type Options struct {
	// Library is the shared object exporting JNI_CreateJavaVM: a libjvm or a
	// native-image build of the engine.
	Library string
	// ClassPath is passed as -Djava.class.path when set.
	ClassPath string
	// JVMOptions are passed through verbatim (e.g. -Xmx512m).
	JVMOptions []string
	// IgnoreUnrecognized mirrors JavaVMInitArgs.ignoreUnrecognized.
	IgnoreUnrecognized bool
	// MaxArrayLength bounds strings and byte arrays sent across.
	MaxArrayLength int
	// LocalFrameCapacity is reserved with PushLocalFrame for every guard.
	LocalFrameCapacity int
	Logger             *slog.Logger
}

// VMArgs renders the option strings handed to the VM.
func (o Options) VMArgs() []string {
	args := make([]string, 0, len(o.JVMOptions)+1)
	if o.ClassPath != "" {
		args = append(args, "-Djava.class.path="+o.ClassPath)
	}
	args = append(args, o.JVMOptions...)
	return args
}

func (o Options) withDefaults() Options {
	if o.MaxArrayLength <= 0 {
		o.MaxArrayLength = DefaultMaxArrayLength
	}
	if o.LocalFrameCapacity <= 0 {
		o.LocalFrameCapacity = DefaultLocalFrameCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// OptionsFromEnv reads the runtime configuration from the environment:
//
//	EXTRACTOUS_JVM_LIB          shared library exporting JNI_CreateJavaVM
//	JAVA_HOME                   fallback location of libjvm
//	EXTRACTOUS_CLASSPATH        engine class path
//	EXTRACTOUS_JVM_OPTS         extra VM options, whitespace separated
//	EXTRACTOUS_JVM_LOCAL_FRAME  local reference capacity per call
func OptionsFromEnv() Options {
	lib := getEnv("EXTRACTOUS_JVM_LIB", "")
	if lib == "" {
		if home := getEnv("JAVA_HOME", ""); home != "" {
			lib = filepath.Join(home, "lib", "server", libjvmName())
		}
	}
	return Options{
		Library:            lib,
		ClassPath:          getEnv("EXTRACTOUS_CLASSPATH", ""),
		JVMOptions:         strings.Fields(getEnv("EXTRACTOUS_JVM_OPTS", "")),
		LocalFrameCapacity: getEnvAsInt("EXTRACTOUS_JVM_LOCAL_FRAME", DefaultLocalFrameCapacity),
	}
}

func libjvmName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libjvm.dylib"
	case "windows":
		return "jvm.dll"
	default:
		return "libjvm.so"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
