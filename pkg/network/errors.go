package network

import "errors"

var (
	// ErrNoReference indicates a case without any reference (slack) bus.
	ErrNoReference = errors.New("network: reference bus set is empty")
	// ErrBusType indicates a bus with an unknown classification.
	ErrBusType = errors.New("network: unknown bus type")
	// ErrBusIndex indicates a branch, generator or device referring to a
	// bus index outside the case.
	ErrBusIndex = errors.New("network: bus index out of range")
	// ErrBaseMVA indicates a non-positive system base.
	ErrBaseMVA = errors.New("network: base MVA must be positive")
	// ErrSVCBus indicates a controllable SVC placed on a bus whose voltage
	// magnitude is not a solver state.
	ErrSVCBus = errors.New("network: controllable svc requires a pq bus")
)
