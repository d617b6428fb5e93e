// Package auth implements the three ways a client can obtain a session record
// (interactive authorization-code login, token hand-off from an embedding
// platform frame, and the local admin password) plus the gate consulted
// before every protected operation.
//
// Each mode is an independent constructor of a *session.Record. Success
// returns the record; failure returns a *failure.Error whose Reason names
// what went wrong. Modes never write to a session store themselves.
package auth
