package execution

import "github.com/TheBenCollins/fdb-document-layer/document"

// Result is what an operator sends downstream. A zero-value Err means
// Doc is a real document; a non-nil Err is a fatal error and is always
// the LAST Result the channel carries before it closes. Ordinary
// end-of-stream is signaled by closing the channel with no trailing
// error Result — end_of_stream itself never escapes an operator as a
// Result value; it stays a private control signal.
type Result struct {
	Doc document.Handle
	Err error
}

// Stream is the output of any operator.
type Stream <-chan Result

func sendDoc(out chan<- Result, stop <-chan struct{}, doc document.Handle) bool {
	select {
	case out <- Result{Doc: doc}:
		return true
	case <-stop:
		return false
	}
}

func sendErr(out chan<- Result, err error) {
	// Errors are never sent during cancellation unwinding — callers must
	// only invoke sendErr outside of a stop-triggered teardown path.
	out <- Result{Err: err}
}

func recvDoc(in Stream, stop <-chan struct{}) (Result, bool, bool) {
	select {
	case r, ok := <-in:
		return r, ok, false
	case <-stop:
		return Result{}, false, true
	}
}
