//go:build !unix

package session

import "io/fs"

// Windows has no mode bits or uid to check; the profile dir ACLs apply.
func private(fs.FileInfo) bool { return true }
