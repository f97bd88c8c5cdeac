package tika

import (
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// Metadata keys set on the way in.
const (
	MetaContentType  = "Content-Type"
	MetaResourceName = "resourceName"
)

// Metadata is the engine's multi-valued metadata.
type Metadata map[string][]string

// newMetadata builds the managed Metadata object carrying the detection
// hints of in.
func newMetadata(env *jvm.Env, in Input) (jvm.Ref, error) {
	ctor, err := env.Method(ClassMetadata, "<init>", sigVoid)
	if err != nil {
		return jvm.Ref{}, err
	}
	md, err := env.NewObject(ctor)
	if err != nil {
		return jvm.Ref{}, err
	}
	set, err := env.Method(ClassMetadata, "set", sigSetString2)
	if err != nil {
		return jvm.Ref{}, err
	}
	hints := [][2]string{
		{MetaContentType, in.ContentType},
		{MetaResourceName, in.ResourceName()},
	}
	for _, h := range hints {
		if h[1] == "" {
			continue
		}
		k, err := env.StringArg(h[0])
		if err != nil {
			return jvm.Ref{}, err
		}
		v, err := env.StringArg(h[1])
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := env.CallVoid(md, set, k, v); err != nil {
			return jvm.Ref{}, err
		}
	}
	return md, nil
}

// harvestMetadata copies every name and value out of a managed Metadata.
func harvestMetadata(env *jvm.Env, md jvm.Referent) (Metadata, error) {
	namesM, err := env.Method(ClassMetadata, "names", sigStringArray)
	if err != nil {
		return nil, err
	}
	getValues, err := env.Method(ClassMetadata, "getValues", sigGetValues)
	if err != nil {
		return nil, err
	}

	arr, err := env.CallObject(md, namesM)
	if err != nil {
		return nil, err
	}
	names, err := env.StringArray(arr)
	env.DeleteLocal(arr)
	if err != nil {
		return nil, err
	}

	out := make(Metadata, len(names))
	for _, name := range names {
		err := env.Frame(func() error {
			k, err := env.StringArg(name)
			if err != nil {
				return err
			}
			vals, err := env.CallObject(md, getValues, k)
			if err != nil {
				return err
			}
			values, err := env.StringArray(vals)
			if err != nil {
				return err
			}
			out[name] = values
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
