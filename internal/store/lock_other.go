//go:build !unix

package store

import "os"

// Advisory locking is only implemented on unix; elsewhere concurrent
// condawatch processes are not serialized.
func lockFile(*os.File, LockMode) error { return nil }

func unlockFile(*os.File) error { return nil }
