package domain

import "time"

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// Event is delivered to subscribers after a mutation has been committed.
type Event struct {
	ID        string
	Op        Op
	ProductID int64
	Cart      Cart
	At        time.Time
}
