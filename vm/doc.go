// Package vm executes event-script bytecode.
//
// This package contains:
//   - Opcode set and bytecode verifier
//   - Program and entry-point representation
//   - Stack-machine interpreter
//   - Cooperative tick scheduler and wait states
//   - Native call id inventory
package vm
