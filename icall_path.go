package skizo

// registerPathClass synthesizes the static `Path` base-module class.
// getFullPath resolves through SecurityManager.GetFullPath; listFiles
// passes its directory through that same check before asking the
// domain's HostServices; isValidPath asks HostServices directly and is
// not gated. This follows the Path icalls of
// original_source/ are (spec.md's distillation drops Path entirely;
// SPEC_FULL.md's supplemented features restore it).
func registerPathClass(ts *TypeSystem) (*Class, error) {
	stringClass, _ := ts.ClassByFlatName("string")
	boolClass, _ := ts.ClassByFlatName("bool")

	path := newClass(SliceOfWhole("Path"))
	path.Flags |= ClassStatic

	getFullPath := &Method{
		Name: SliceOfWhole("getFullPath"), Special: MethodSpecialNative,
		Signature: MethodSignature{
			IsStatic:   true,
			ReturnType: stringClass.ToTypeRef(),
			Params:     []Param{{Name: SliceOfWhole("path"), Type: stringClass.ToTypeRef()}},
		},
	}
	isValidPath := &Method{
		Name: SliceOfWhole("isValidPath"), Special: MethodSpecialNative,
		Signature: MethodSignature{
			IsStatic:   true,
			ReturnType: boolClass.ToTypeRef(),
			Params:     []Param{{Name: SliceOfWhole("path"), Type: stringClass.ToTypeRef()}},
		},
	}
	listFiles := &Method{
		Name: SliceOfWhole("listFiles"), Special: MethodSpecialNative,
		Signature: MethodSignature{
			IsStatic:   true,
			ReturnType: ts.arrayOf(stringClass).ToTypeRef(),
			Params:     []Param{{Name: SliceOfWhole("dir"), Type: stringClass.ToTypeRef()}},
		},
	}

	for _, m := range []*Method{getFullPath, isValidPath, listFiles} {
		if err := path.AddMethod(m); err != nil {
			return nil, err
		}
	}
	if err := ts.RegisterClass(path); err != nil {
		return nil, err
	}
	return path, nil
}

// registerPathICalls binds the native bodies of the Path methods
// registerPathClass declared.
func registerPathICalls(in *Interpreter) {
	in.RegisterICall("Path", "getFullPath", func(in *Interpreter, self Value, args []Value) (Value, error) {
		p, _ := args[0].(string)
		full, err := in.sec.GetFullPath(p)
		if err != nil {
			return nil, err
		}
		return full, nil
	})

	in.RegisterICall("Path", "isValidPath", func(in *Interpreter, self Value, args []Value) (Value, error) {
		p, _ := args[0].(string)
		if in.host == nil {
			return false, nil
		}
		return in.host.IsValidPath(p), nil
	})

	in.RegisterICall("Path", "listFiles", func(in *Interpreter, self Value, args []Value) (Value, error) {
		dir, _ := args[0].(string)
		full, err := in.sec.GetFullPath(dir)
		if err != nil {
			return nil, err
		}
		if in.host == nil {
			return nil, newAbort(DisallowedCall, "no HostServices installed")
		}
		names, err := in.host.ListFiles(full)
		if err != nil {
			return nil, err
		}
		stringClass, _ := in.ts.ClassByFlatName("string")
		arrClass := in.ts.arrayOf(stringClass)
		arr := in.gc.AllocArray(arrClass, len(names))
		for i, n := range names {
			arr.Elems[i] = n
		}
		return arr, nil
	})
}
