// Package postal wraps libpostal address expansion. The cgo binding is only
// compiled with the libpostal build tag since it needs the C library.
package postal

import "golang.org/x/xerrors"

// ErrUnavailable is returned when the binary was built without libpostal
var ErrUnavailable = xerrors.New("libpostal support not compiled in (build with -tags libpostal)")
