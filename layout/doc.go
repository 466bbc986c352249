// Package layout computes the descriptor-set layout of a pipeline from its
// resource signatures.
//
// # Overview
//
// Building a layout is a two step process shared by the archiving path and
// the live reflection path:
//
//  1. [Sort] places each signature in a fixed [SignatureArray] slot keyed by
//     its binding index, rejecting duplicates.
//  2. [Assign] walks the slots in increasing order and hands out descriptor
//     set indices, one per mutability class the backend keeps in a separate
//     set.
//
// [Build] runs both steps and returns a [Pipeline], which answers binding
// queries ([Pipeline.Bindings], [Pipeline.Resolve]). Because the shader
// remapper resolves names through the same Pipeline, reported bindings always
// match what is burned into shader bytecode.
//
// # Backend rules
//
// Whether static/mutable and dynamic resources share one descriptor set is a
// backend property, expressed as a [Rule]. [DefaultRules] returns the
// built-in table.
//
// # Thread Safety
//
// All functions are pure. A Pipeline is immutable and safe for concurrent use.
package layout
