package qualitygate

import "errors"

var ErrUnknownContentType = errors.New("unknown content type")
