// dump.go - Dump-Funktionen fuer Tensor-Debugging und Visualisierung
// Dieses Modul stellt Hilfsfunktionen zum Ausgeben von Tensor-Inhalten bereit.
package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DumpOptions configures tensor dump output format.
type DumpOptions func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Precision = n
	}
}

// DumpWithThreshold sets the threshold for printing the entire tensor. If the number of elements
// is less than or equal to this value, the entire tensor will be printed. Otherwise, only the
// beginning and end of each dimension will be printed.
func DumpWithThreshold(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Threshold = n
	}
}

// DumpWithEdgeItems sets the number of elements to print at the beginning and end of each dimension.
func DumpWithEdgeItems(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.EdgeItems = n
	}
}

type dumpOptions struct {
	Precision, Threshold, EdgeItems int
}

// Dump converts a tensor to a human-readable string representation.
func Dump(t *Tensor, optsFuncs ...DumpOptions) string {
	opts := dumpOptions{Precision: 4, Threshold: 1000, EdgeItems: 3}
	for _, optsFunc := range optsFuncs {
		optsFunc(&opts)
	}

	if t.Len() <= opts.Threshold {
		opts.EdgeItems = math.MaxInt
	}

	format := func(f float32) string {
		return strconv.FormatFloat(float64(f), 'f', opts.Precision, 32)
	}

	shape := t.Shape()
	if len(shape) == 0 {
		return format(t.data[0])
	}

	items := opts.EdgeItems
	var sb strings.Builder
	var f func([]int, int)
	f = func(dims []int, offset int) {
		prefix := strings.Repeat(" ", len(shape)-len(dims)+1)
		sb.WriteString("[")
		defer func() { sb.WriteString("]") }()
		for i := 0; i < dims[0]; i++ {
			if i >= items && i < dims[0]-items {
				sb.WriteString("..., ")
				// zum naechsten druckbaren Element springen
				skip := dims[0] - 2*items
				if len(dims) > 1 {
					offset += skip * numel(dims[1:])
					fmt.Fprint(&sb, strings.Repeat("\n", len(dims)-1), prefix)
				}
				i += skip - 1
			} else if len(dims) > 1 {
				f(dims[1:], offset)
				offset += numel(dims[1:])
				if i < dims[0]-1 {
					fmt.Fprint(&sb, ",", strings.Repeat("\n", len(dims)-1), prefix)
				}
			} else {
				text := format(t.data[offset+i])
				if len(text) > 0 && text[0] != '-' {
					sb.WriteString(" ")
				}

				sb.WriteString(text)
				if i < dims[0]-1 {
					sb.WriteString(", ")
				}
			}
		}
	}
	f(shape, 0)

	return sb.String()
}

// Stats fasst einen Tensor fuer Log-Ausgaben zusammen.
type Stats struct {
	Min, Max, Mean float64
}

// Stats berechnet Minimum, Maximum und Mittelwert.
func (t *Tensor) Stats() Stats {
	if t.Len() == 0 {
		return Stats{}
	}
	f64 := make([]float64, t.Len())
	for i, v := range t.data {
		f64[i] = float64(v)
	}
	return Stats{
		Min:  floats.Min(f64),
		Max:  floats.Max(f64),
		Mean: floats.Sum(f64) / float64(len(f64)),
	}
}
