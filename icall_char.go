package skizo

import "unicode"

// registerCharMethods adds the classification static methods to the
// built-in `char` class. Unlike the Path icalls these are ungated: pure
// functions of a single char value, with no ambient authority to police
// (spec.md's distillation drops Char entirely; SPEC_FULL.md's
// supplemented features restore it from original_source/).
func registerCharMethods(ts *TypeSystem) error {
	charClass, _ := ts.ClassByFlatName("char")
	boolClass, _ := ts.ClassByFlatName("bool")

	mk := func(name string) *Method {
		return &Method{
			Name: SliceOfWhole(name), Special: MethodSpecialNative,
			Signature: MethodSignature{
				IsStatic:   true,
				ReturnType: boolClass.ToTypeRef(),
				Params:     []Param{{Name: SliceOfWhole("c"), Type: charClass.ToTypeRef()}},
			},
		}
	}

	for _, name := range []string{"isLetter", "isDigit", "isWhiteSpace"} {
		if err := charClass.AddMethod(mk(name)); err != nil {
			return err
		}
	}
	return nil
}

func registerCharICalls(in *Interpreter) {
	classify := func(pred func(rune) bool) ICallFunc {
		return func(in *Interpreter, self Value, args []Value) (Value, error) {
			r, _ := args[0].(rune)
			return pred(r), nil
		}
	}
	in.RegisterICall("char", "isLetter", classify(unicode.IsLetter))
	in.RegisterICall("char", "isDigit", classify(unicode.IsDigit))
	in.RegisterICall("char", "isWhiteSpace", classify(unicode.IsSpace))
}
