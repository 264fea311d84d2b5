/*
Package builder turns a pipeline definition into an executable Plan. It acts
as the bridge between the static model (package model) and the scheduler.

Plan construction is a multi-phase process:

 1. Validation: the pipeline's structural invariants are checked and every
    job condition is parsed. Any problem is a definition error and nothing is
    built.

 2. Expansion: jobs are visited in topological order and each is expanded into
    its instances by the matrix expander. The instances are added to the run
    graph in that order, which fixes the plan order used for deterministic
    dispatch.

 3. Linking: every instance of a job gets an edge from every instance of each
    job it needs, then the graph is checked for cycles once more.
*/
package builder
