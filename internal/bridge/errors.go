package bridge

import "errors"

var ErrUnknownLight = errors.New("unknown light")
