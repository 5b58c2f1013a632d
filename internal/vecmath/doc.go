// Package vecmath provides the float32 kernels used by the distance package.
//
// Kernels are picked per call from the vector length. Vectors of at least
// 32 lanes get an eight-accumulator unrolled loop, shorter ones a
// four-accumulator loop.
package vecmath
