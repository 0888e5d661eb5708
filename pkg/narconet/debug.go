package narconet

import "os"

// DebugEnabled controls whether or not debug-level logging is enabled. It is
// set automatically based on the NARCONET_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("NARCONET_DEBUG") == "1"
}
