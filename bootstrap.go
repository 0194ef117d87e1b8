package skizo

// bootstrapClasses registers the built-in classes every domain needs
// before a single user class is parsed: the primitive value types, the
// root Object class, the Any interface value types implicitly upcast to,
// and the base Error class Failables wrap (spec.md §4.J "Init basic
// classes").
func bootstrapClasses(ts *TypeSystem) (*Class, error) {
	prim := func(name string, tag PrimitiveTag, size int) *Class {
		c := newClass(SliceOfWhole(name))
		c.Primitive = tag
		c.Flags |= ClassValueType | ClassSizeCalculated
		c.GCInfo.ContentSize = size
		c.GCInfo.SizeForUse = size
		return c
	}

	classes := []*Class{
		prim("void", PrimVoid, 0),
		prim("int", PrimInt, 8),
		prim("float", PrimFloat, 8),
		prim("bool", PrimBool, 1),
		prim("char", PrimChar, 4),
		prim("intptr", PrimIntPtr, wordSize),
	}

	object := newClass(SliceOfWhole("Object"))
	object.Primitive = PrimObject
	object.GCInfo.ContentSize = wordSize
	object.GCInfo.SizeForUse = wordSize
	object.Flags |= ClassSizeCalculated
	classes = append(classes, object)

	any_ := newClass(SliceOfWhole("Any"))
	any_.Special = SpecialInterface
	any_.Flags |= ClassAbstract
	classes = append(classes, any_)

	errClass := newClass(SliceOfWhole("Error"))
	errClass.BaseRef = object.ToTypeRef()
	classes = append(classes, errClass)

	str := newClass(SliceOfWhole("string"))
	str.BaseRef = object.ToTypeRef()
	classes = append(classes, str)

	marshal := newClass(SliceOfWhole("Marshal"))
	marshal.Flags |= ClassStatic
	classes = append(classes, marshal)

	for _, c := range classes {
		if err := ts.RegisterClass(c); err != nil {
			return nil, err
		}
	}
	return object, nil
}

// NewDemoProgramClass registers a minimal `Program` class with a static
// `main` method whose body does nothing, letting the CLI's `-demo` flag
// exercise the full domain lifecycle without a real parser front end
// (parsing is out of scope; see cmd/skizoc).
func NewDemoProgramClass(ts *TypeSystem) (*Class, error) {
	voidClass, _ := ts.ClassByFlatName("void")
	program := newClass(SliceOfWhole("Program"))
	main := &Method{
		Name: SliceOfWhole("main"),
		Signature: MethodSignature{
			IsStatic:   true,
			ReturnType: voidClass.ToTypeRef(),
		},
		Body: &BodyExpr{Statements: []Expr{&Return{}}},
	}
	if err := program.AddMethod(main); err != nil {
		return nil, err
	}
	if err := ts.RegisterClass(program); err != nil {
		return nil, err
	}
	return program, nil
}
