package io

type LockMode uint8

const (
	Exclusive LockMode = iota
	Shared
)

func (m LockMode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}
