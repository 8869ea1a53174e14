package steering

// StateCallback is a function invoked when a client entry's steering state
// changes.
//
// External systems (host-process logging, a metrics exporter, an
// operator-facing CLI) register callbacks to react to transitions such as
// Associated->Rejecting that should trigger an alert.
//
// Callbacks registered with SteeringContext.OnStateChange are invoked
// synchronously on the goroutine that dispatches the FSM event, before the
// change is offered to the StateChanges() channel, so a slow callback
// stalls event dispatch for the whole context.
//
// A consumer can instead range over StateChanges() on its own goroutine
// and invoke its callbacks there:
//
//	go func() {
//	    for change := range ctx.StateChanges() {
//	        for _, cb := range callbacks {
//	            cb(change)
//	        }
//	    }
//	}()
//
// This decoupled design avoids import cycles between the steering package
// and protocol-specific integration packages (e.g., a blacklist actuator
// or a metrics exporter).
type StateCallback func(change StateChange)
