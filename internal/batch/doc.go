// Package batch owns the on-disk batch representation: JSON batch files laid
// out one directory per stage, written with all-or-nothing visibility.
package batch
