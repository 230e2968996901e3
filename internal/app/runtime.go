package app

import (
	"os"
	"sync"
)

// InTestMode reports whether runtime side effects (servers, workers, pools)
// should be skipped. Test harnesses set MOTOSERVIS_TEST_MODE=1 before
// invoking the binaries.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv("MOTOSERVIS_TEST_MODE") == "1"
})
