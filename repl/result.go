package repl

// ExecResult is the outcome of one remote execution.
// Exception is empty exactly when the device reported a clean run;
// when non-empty it is the verbatim text block emitted for the failure.
type ExecResult struct {
	Output    string
	Exception string
}

// Failed reports whether the device raised an exception.
func (r ExecResult) Failed() bool { return r.Exception != "" }

// Check returns a *RemoteExecError carrying the exception text when the
// remote run failed, nil otherwise.
func (r ExecResult) Check() error {
	if r.Exception == "" {
		return nil
	}
	return &RemoteExecError{Exception: r.Exception}
}
