// Package did parses Candid interface descriptions (.did files) and
// Candid text values.
//
// Parse turns service text into an idl.Env of named types plus the main
// service type:
//
//	prog, err := did.Parse(`
//		type address = record { street : text; city : text };
//		service : {
//			greet : (text) -> (text) query;
//			add_address : (address) -> ();
//		}
//	`)
//
// ParseValues reads argument lists like `("alice", record { id = 7 })`
// against the expected types, which is how the command line builds call
// arguments.
//
// Imports and the textual annotations of a service class beyond its init
// arguments are not supported.
package did
