// Package metrics records per-step training losses.
package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Sink receives the scalar loss of one network after a training step.
type Sink interface {
	Record(step int, network string, loss float32) error
}

// CSVSink writes "step,network,loss" rows.
type CSVSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSVSink writes a header row to w and returns a sink appending to it.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if err := s.write("step", "network", "loss"); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCSV creates (or truncates) the file at path and returns a sink
// writing to it. Close the sink to close the file.
func CreateCSV(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	s, err := NewCSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Record appends one row and flushes it.
func (s *CSVSink) Record(step int, network string, loss float32) error {
	return s.write(strconv.Itoa(step), network, strconv.FormatFloat(float64(loss), 'g', -1, 32))
}

func (s *CSVSink) write(fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the sink owns one.
func (s *CSVSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Summary keeps every recorded loss in memory, per network.
type Summary struct {
	mu     sync.Mutex
	losses map[string][]float64
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{losses: make(map[string][]float64)}
}

// Record stores loss under network.
func (s *Summary) Record(_ int, network string, loss float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.losses[network] = append(s.losses[network], float64(loss))
	return nil
}

// Stats describes the losses recorded for one network.
type Stats struct {
	Count  int
	Mean   float64
	StdDev float64
	Last   float64
}

// Stats returns the statistics of the last window losses of network, or of
// every loss when window <= 0.
func (s *Summary) Stats(network string, window int) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := s.losses[network]
	if window > 0 && len(x) > window {
		x = x[len(x)-window:]
	}
	if len(x) == 0 {
		return Stats{}
	}
	st := Stats{Count: len(x), Last: x[len(x)-1]}
	if len(x) == 1 {
		st.Mean = x[0]
		return st
	}
	st.Mean, st.StdDev = stat.MeanStdDev(x, nil)
	return st
}

// Networks returns the recorded network names in sorted order.
func (s *Summary) Networks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.losses))
	for name := range s.losses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tee returns a sink recording to every sink in order. It stops at the
// first error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Record(step int, network string, loss float32) error {
	for _, s := range t {
		if err := s.Record(step, network, loss); err != nil {
			return err
		}
	}
	return nil
}
