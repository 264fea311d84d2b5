/*
Package nodeid provides a structured, type-safe representation for job
instance identifiers, based on the canonical format `job[axis=value,...]`.

A job without a matrix is addressed by its bare id, e.g. `lint`. A matrix
instance carries its ordered axis tuple, e.g. `test[os=linux,go=1.22]`.
Values that contain separators are written as Go-quoted strings.

This package enforces the identifier schema and centralizes all
formatting and parsing logic.
*/
package nodeid
