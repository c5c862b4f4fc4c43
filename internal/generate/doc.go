// Package generate produces new source batches: random seed words and a
// domain are fed to the composition model, and every item receives its
// identity token exactly once, at creation.
package generate
