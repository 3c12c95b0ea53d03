package tbspread

import "errors"

// ErrConfiguration marks fatal setup problems: missing age distribution,
// malformed routine or tag files. Runs never start when it is returned.
var ErrConfiguration = errors.New("configuration error")

// ErrLookupMiss marks a routine or place lookup with no answer. The agent
// keeps its position and the run continues.
var ErrLookupMiss = errors.New("lookup miss")

// ErrNoNeighbors is returned by InfectionProbability for an empty neighbor set.
var ErrNoNeighbors = errors.New("no neighbors")
