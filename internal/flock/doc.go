// Package flock provides the advisory file lock that keeps two schedulers
// from sharing one working directory.
//
// Usage:
//
//	lock, err := flock.Acquire(ctx, filepath.Join(workdir, ".autocompose.lock"), constants.LockTimeout)
//	if err != nil {
//	    // another scheduler owns the directory
//	}
//	defer lock.Release()
package flock
