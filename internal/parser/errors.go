package parser

import "errors"

// ErrMalformedToken describes a member token that cannot be split into a
// name and a suffix under the input grammar. Parse does not return or
// wrap it: such text yields NormalMsg with an empty FailureDetail.
var ErrMalformedToken = errors.New("parser: malformed input token")
