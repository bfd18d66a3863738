// Package substrate abstracts the container/network emulation layer the
// orchestrator provisions nodes into. The orchestrator only ever needs to
// create an isolated environment at a fixed IP, run commands in it, and copy
// files into it; everything else about the emulation is out of scope.
package substrate

import "context"

// Substrate is the narrow surface the orchestrator consumes.
type Substrate interface {
	// Create provisions an isolated environment reachable at the given IPv4
	// address. The environment stays idle until commands are executed in it.
	Create(ctx context.Context, name, image, address string) error

	// Exec runs a shell command inside the environment and returns its
	// combined output.
	Exec(ctx context.Context, name, command string) (string, error)

	// CopyInto copies a host path (file or directory contents) into the
	// environment at destPath.
	CopyInto(ctx context.Context, name, srcPath, destPath string) error

	// Remove tears the environment down. Removing an environment that does
	// not exist is not an error.
	Remove(ctx context.Context, name string) error

	// List returns the names of environments this substrate tracks.
	List(ctx context.Context) ([]string, error)
}
