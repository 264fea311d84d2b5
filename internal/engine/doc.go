// Package engine turns pipeline definitions into runs and keeps track of
// them. A Run owns its plan, its artifact store and its scheduler; the
// Engine registry lets the control server look runs up and cancel them.
package engine
