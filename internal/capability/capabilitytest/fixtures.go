// Package capabilitytest provides a recording capability implementation for
// tests of the registry, the adapter synthesizer and the session bridge.
package capabilitytest

import (
	"context"
	"maps"
	"strings"
	"sync"

	"switchboard/internal/api"
	"switchboard/internal/capability"
)

// SchedulingName is the implementation name used by SchedulingDefinition.
const SchedulingName = "scheduling"

// ListEventsArgs are the arguments of list_events.
type ListEventsArgs struct {
	TimeMin    string `json:"time_min" desc:"RFC3339 lower bound for event start"`
	MaxResults int    `json:"max_results" default:"10" desc:"Maximum number of events"`
}

// CreateEventArgs are the arguments of create_event. Note has a non-null
// default so that omission and explicit null are observably different.
type CreateEventArgs struct {
	Title     string   `json:"title" desc:"Event title"`
	Attendees []string `json:"attendees" default:"null" desc:"Attendee emails"`
	Note      *string  `json:"note" default:"none"`
}

// BulkArgs are the arguments of bulk_records.
type BulkArgs struct {
	Count int `json:"count" default:"3"`
	Width int `json:"width" default:"8"`
}

// Call is one recorded operation invocation.
type Call struct {
	Operation string
	Args      interface{}
	Context   *api.ExecutionContext
	// Credentials are the credentials the operation saw while it ran.
	Credentials map[string]interface{}
}

// Scheduling records every call it receives.
type Scheduling struct {
	Config api.ImplementationConfig

	// FailWith makes every operation return this error.
	FailWith error

	// Started, when set, is sent to as list_events begins. Gate, when set,
	// holds list_events until it is closed or sent to.
	Started chan<- struct{}
	Gate    <-chan struct{}

	mu    sync.Mutex
	calls []Call
}

// OperationDocs marks list_events, create_event and bulk_records as callable.
func (s *Scheduling) OperationDocs() map[string]string {
	return map[string]string{
		"list_events":  "List upcoming calendar events.",
		"create_event": "Create a calendar event.",
		"bulk_records": "Return a configurable number of records.",
	}
}

// ListEvents echoes its arguments.
func (s *Scheduling) ListEvents(ctx context.Context, ec *api.ExecutionContext, args ListEventsArgs) (interface{}, error) {
	if s.Started != nil {
		s.Started <- struct{}{}
	}
	if s.Gate != nil {
		<-s.Gate
	}
	s.record("list_events", args, ec)
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	return map[string]interface{}{"time_min": args.TimeMin, "max_results": args.MaxResults}, nil
}

// CreateEvent echoes its arguments.
func (s *Scheduling) CreateEvent(ctx context.Context, ec *api.ExecutionContext, args CreateEventArgs) (interface{}, error) {
	s.record("create_event", args, ec)
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	return map[string]interface{}{"title": args.Title, "attendees": args.Attendees}, nil
}

// BulkRecords returns Count records of Width characters each.
func (s *Scheduling) BulkRecords(ctx context.Context, ec *api.ExecutionContext, args BulkArgs) (interface{}, error) {
	s.record("bulk_records", args, ec)
	records := make([]interface{}, args.Count)
	for i := range records {
		records[i] = map[string]interface{}{"id": i, "body": strings.Repeat("x", args.Width)}
	}
	return map[string]interface{}{"records": records}, nil
}

// Reschedule is exported but not listed in OperationDocs.
func (s *Scheduling) Reschedule(ctx context.Context, ec *api.ExecutionContext, args ListEventsArgs) (interface{}, error) {
	return nil, nil
}

func (s *Scheduling) record(op string, args interface{}, ec *api.ExecutionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Operation: op, Args: args, Context: ec, Credentials: maps.Clone(ec.Credentials)})
}

// Calls returns a copy of the recorded calls.
func (s *Scheduling) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// LastCall returns the most recent call, or false.
func (s *Scheduling) LastCall() (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return Call{}, false
	}
	return s.calls[len(s.calls)-1], true
}

// Recorder collects the instances built by SchedulingDefinition.
type Recorder struct {
	mu        sync.Mutex
	instances []*Scheduling

	// FailWith, Started and Gate are copied into every new instance.
	FailWith error
	Started  chan<- struct{}
	Gate     <-chan struct{}
}

// Instances returns the instances built so far.
func (r *Recorder) Instances() []*Scheduling {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Scheduling, len(r.instances))
	copy(out, r.instances)
	return out
}

// Last returns the most recently built instance.
func (r *Recorder) Last() *Scheduling {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.instances) == 0 {
		return nil
	}
	return r.instances[len(r.instances)-1]
}

// SchedulingDefinition returns a definition whose constructor registers each
// instance with rec. rec may be nil.
func SchedulingDefinition(rec *Recorder) capability.Definition {
	return NamedDefinition(SchedulingName, rec)
}

// NamedDefinition is SchedulingDefinition under another implementation name.
func NamedDefinition(name string, rec *Recorder) capability.Definition {
	return capability.Definition{
		Name:        name,
		Description: "Recording scheduling fixture",
		Prototype:   &Scheduling{},
		New: func(cfg api.ImplementationConfig) (capability.Implementation, error) {
			s := &Scheduling{Config: cfg}
			if rec != nil {
				rec.mu.Lock()
				s.FailWith = rec.FailWith
				s.Started = rec.Started
				s.Gate = rec.Gate
				rec.instances = append(rec.instances, s)
				rec.mu.Unlock()
			}
			return s, nil
		},
	}
}

// NewRegistry returns a registry discovered from the given definitions.
func NewRegistry(defs ...capability.Definition) *capability.Registry {
	r := capability.NewRegistry()
	r.Discover(defs)
	return r
}
