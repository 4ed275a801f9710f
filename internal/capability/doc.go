// Package capability discovers capability implementations and extracts the
// schema of their externally callable operations.
//
// # Operations
//
// An implementation exposes an operation through an exported method of the form
//
//	func (s *Scheduling) ListEvents(ctx context.Context, ec *api.ExecutionContext, args ListEventsArgs) (any, error)
//
// listed by its snake_case name in OperationDocs. The fields of the argument
// struct, in declaration order, are the operation's business parameters:
//
//	type ListEventsArgs struct {
//	    TimeMin    string `json:"time_min" desc:"RFC3339 lower bound"`
//	    MaxResults int    `json:"max_results" default:"10"`
//	}
//
// A parameter is required iff it has no default tag. Pointer fields are
// nullable, and default:"null" declares a null default. The context and
// execution context parameters never appear in descriptors.
//
// # Failure handling
//
// Methods with the wrong shape, an unsupported field type, an undecodable
// default or an empty description are skipped with a warning. Discovery never
// fails as a whole.
package capability
