// Package store defines the persistence contracts for compilation state.
// Implementations live under internal/platform; the application depends
// only on the interfaces declared here.
package store
