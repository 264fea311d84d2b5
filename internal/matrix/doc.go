// Package matrix expands a job definition into its concrete instances.
//
// The base set is the cartesian product of the declared axes, in declared
// order with the last axis varying fastest. Exclude entries remove every
// product tuple that matches all the keys they mention. Include entries are
// appended afterwards, verbatim and in declaration order; they are never
// excluded and may carry ad-hoc keys that exist only for that instance.
//
// Step inputs are HCL templates evaluated per instance, so a value such as
// "go test ./... -tags ${matrix.os}" becomes "go test ./... -tags linux".
package matrix
