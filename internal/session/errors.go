package session

import "errors"

var errMissingHost = errors.New("missing host")
