// Package assemblr supervises external genome-assembly and read-subsampling
// tools.
package assemblr

// Version is overridden at build time with -ldflags "-X".
var Version = "v0.1.0-dev"
