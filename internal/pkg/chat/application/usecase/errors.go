package usecase

import "fmt"

// ErrPersistence marks an infrastructure failure inside a use case. Domain
// errors pass through untouched so controllers can map them to statuses.
var ErrPersistence = fmt.Errorf("chat use case persistence error")
