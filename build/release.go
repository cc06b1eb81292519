package build

// Release identifies which build of pfs is running, and is used by Select
// to pick the correct value out of a Var. It is set by the linker in
// production builds (-ldflags "-X github.com/pfs-project/pfs/build.Release=standard");
// tests run against the default value, "testing".
var Release = "testing"

// DEBUG controls whether Critical and Severe panic in addition to logging,
// and whether persist.Logger.Debugln/Debugf actually emit anything.
var DEBUG = false
