// Package cli provides CLI commands for the faultline application.
package cli

import (
	"context"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/example/faultline/internal/ctxutil"
	"github.com/example/faultline/internal/wire"
)

// globalActorID stores the actor for the current CLI invocation.
// Set once at startup by DetectAndStoreActor().
var globalActorID string

// BindGlobalFlags registers the flags every command shares and the hook
// that applies them.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("actor", "", "Actor recorded in the audit log (default: $FAULTLINE_ACTOR or the OS user)")
	root.PersistentFlags().String("dir", ".", "Project directory holding .faultline/config.yaml")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		wire.SetWorkDir(dir)
		actor, _ := cmd.Flags().GetString("actor")
		DetectAndStoreActor(actor)
	}
}

// DetectAndStoreActor stores the explicit actor, falling back to
// $FAULTLINE_ACTOR and then the OS user name.
func DetectAndStoreActor(explicit string) {
	switch {
	case explicit != "":
		globalActorID = explicit
	case os.Getenv("FAULTLINE_ACTOR") != "":
		globalActorID = os.Getenv("FAULTLINE_ACTOR")
	default:
		if u, err := user.Current(); err == nil {
			globalActorID = u.Username
		}
	}
}

// GetActorID returns the stored actor ID from CLI startup.
// Returns empty string if DetectAndStoreActor() was not called.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() context.Context {
	ctx := context.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}
