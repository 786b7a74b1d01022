package corpus

import "errors"

// ErrNotFound reports a missing required input file. Fatal for the stage.
var ErrNotFound = errors.New("source file not found")

// ErrParse reports an unreadable or corrupt tabular/JSON input. Fatal for
// the stage.
var ErrParse = errors.New("cannot parse source file")

// ErrSchema reports that the required column roles could not be resolved.
var ErrSchema = errors.New("cannot resolve required columns")
