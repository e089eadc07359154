// Package idl models Candid interface-description types and values.
//
// Types form a closed set behind the Type interface: the PrimType
// constants, *VecType, *OptType, *RecordType, *VariantType, *FuncType,
// *ServiceType and *RefType. Constructors validate their input, so a
// descriptor that exists is well formed:
//
//	user := idl.MustRecord(
//		idl.NewField("id", idl.Nat32),
//		idl.NewField("name", idl.Opt(idl.Text)),
//	)
//
// Recursive types are expressed through an Env arena. A name is declared
// first, its *RefType used inside the definition, then defined:
//
//	env := idl.NewEnv()
//	list, _ := env.Declare("List")
//	_ = env.Define(list, idl.Opt(idl.MustRecord(
//		idl.NewField("head", idl.Int),
//		idl.NewField("tail", list),
//	)))
//
// Values are plain Go values; see Option, Record, Variant and FuncRef.
// Check tests a value against a type, Compatible decides whether bytes
// encoded as one type can be read as another, and Format prints a value
// in Candid text syntax.
package idl
