// Package report collects trial results for one kernel and renders them as a
// terminal table, CSV, or JSON. The best configuration is the fastest trial
// that both ran and verified; failed trials are kept for the record but never
// win.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/zuqini/CLTune/internal/harness"
	"github.com/zuqini/CLTune/internal/kernel"
)

// Reporter accumulates results for one kernel.
type Reporter struct {
	Kernel  string
	Params  []kernel.Parameter
	Device  string
	results []harness.Result
}

// New creates a Reporter for the named kernel. The parameter list fixes the
// column order of every export.
func New(kernelName string, params []kernel.Parameter, deviceName string) *Reporter {
	return &Reporter{Kernel: kernelName, Params: params, Device: deviceName}
}

// Add records one trial result.
func (r *Reporter) Add(res harness.Result) {
	r.results = append(r.results, res)
}

// Count returns the number of recorded trials.
func (r *Reporter) Count() int {
	return len(r.results)
}

// Best returns the fastest successful trial. The second return is false when
// no trial both ran and verified.
func (r *Reporter) Best() (harness.Result, bool) {
	var best harness.Result
	found := false
	for _, res := range r.results {
		if res.Status != harness.StatusSuccess {
			continue
		}
		if !found || res.Time < best.Time {
			best = res
			found = true
		}
	}
	return best, found
}

// BestTimeMS returns the best verified execution time in milliseconds, or 0
// when no configuration survived.
func (r *Reporter) BestTimeMS() float64 {
	best, ok := r.Best()
	if !ok {
		return 0
	}
	return float64(best.Time) / float64(time.Millisecond)
}

// Table returns the results sorted fastest first, with failed trials after
// all successful ones in recording order.
func (r *Reporter) Table() []harness.Result {
	sorted := append([]harness.Result(nil), r.results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if !a.OK() {
			return false
		}
		return a.Time < b.Time
	})
	return sorted
}

// PrintToScreen writes a human-readable summary table to stdout and returns
// the best time in milliseconds (0 when nothing verified).
func (r *Reporter) PrintToScreen() float64 {
	r.Fprint(os.Stdout)
	return r.BestTimeMS()
}

// Fprint writes the summary table to w.
func (r *Reporter) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\nResults for kernel %q on %s (%d configurations)\n\n", r.Kernel, r.Device, len(r.results))

	widths := make([]int, len(r.Params))
	for i, p := range r.Params {
		widths[i] = len(p.Name)
		for _, v := range p.Values {
			if n := len(strconv.Itoa(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, p := range r.Params {
		fmt.Fprintf(w, "%-*s  ", widths[i], p.Name)
	}
	fmt.Fprintf(w, "%10s  %s\n", "time (ms)", "status")
	for i := range r.Params {
		fmt.Fprintf(w, "%s  ", strings.Repeat("-", widths[i]))
	}
	fmt.Fprintf(w, "%s  %s\n", strings.Repeat("-", 10), strings.Repeat("-", 6))

	for _, res := range r.Table() {
		for i, p := range r.Params {
			fmt.Fprintf(w, "%-*d  ", widths[i], res.Configuration[p.Name])
		}
		if res.OK() {
			fmt.Fprintf(w, "%10.4f  %s\n", msec(res.Time), res.Status)
		} else {
			fmt.Fprintf(w, "%10s  %s\n", "-", res.Status)
		}
	}

	if best, ok := r.Best(); ok {
		fmt.Fprintf(w, "\nBest: %s (%.4f ms)\n", best.Configuration.Format(r.Params), msec(best.Time))
	} else {
		fmt.Fprintf(w, "\nBest: none (no configuration verified)\n")
	}
}

// WriteCSV writes one row per trial with a column per parameter, the time in
// milliseconds, and the status.
func (r *Reporter) WriteCSV(w io.Writer) error {
	cols := make([]string, 0, len(r.Params)+2)
	for _, p := range r.Params {
		cols = append(cols, p.Name)
	}
	cols = append(cols, "time_ms", "status")
	if _, err := fmt.Fprintln(w, strings.Join(cols, ",")); err != nil {
		return err
	}

	for _, res := range r.Table() {
		row := make([]string, 0, len(cols))
		for _, p := range r.Params {
			row = append(row, strconv.Itoa(res.Configuration[p.Name]))
		}
		ms := "0"
		if res.OK() {
			ms = strconv.FormatFloat(msec(res.Time), 'f', -1, 64)
		}
		row = append(row, ms, res.Status.String())
		if _, err := fmt.Fprintln(w, strings.Join(row, ",")); err != nil {
			return err
		}
	}
	return nil
}

// PrintToFile writes the CSV table to the named file.
func (r *Reporter) PrintToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := r.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type jsonTrial struct {
	Parameters map[string]int `json:"parameters"`
	TimeMS     float64        `json:"time_ms"`
	Status     string         `json:"status"`
	Detail     string         `json:"detail,omitempty"`
}

type jsonReport struct {
	Kernel   string         `json:"kernel"`
	Device   string         `json:"device"`
	Trials   []jsonTrial    `json:"trials"`
	Best     map[string]int `json:"best,omitempty"`
	BestTime float64        `json:"best_time_ms"`
}

// WriteJSON writes the full report as JSON.
func (r *Reporter) WriteJSON(w io.Writer) error {
	out := jsonReport{
		Kernel:   r.Kernel,
		Device:   r.Device,
		Trials:   make([]jsonTrial, 0, len(r.results)),
		BestTime: r.BestTimeMS(),
	}
	for _, res := range r.Table() {
		trial := jsonTrial{
			Parameters: res.Configuration,
			Status:     res.Status.String(),
			Detail:     res.Detail,
		}
		if res.OK() {
			trial.TimeMS = msec(res.Time)
		}
		out.Trials = append(out.Trials, trial)
	}
	if best, ok := r.Best(); ok {
		out.Best = best.Configuration
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteJSONFile writes the JSON report to the named file.
func (r *Reporter) WriteJSONFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := r.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func msec(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
