package ops

import "errors"

var (
	errBothOrNeither  = errors.New("both start and end must be provided, or neither")
	errBadStart       = errors.New("invalid start time, use RFC3339 format")
	errBadEnd         = errors.New("invalid end time, use RFC3339 format")
	errEndBeforeStart = errors.New("end must be after start")
	errBadDays        = errors.New("invalid days; must be 1-90")
)
