package scheduler

import (
	"encoding/xml"
	"io"
	"math"
)

// xmlStats is the self-delimited wire fragment Stats emits:
// <stats id="sched"><jobs>T</jobs><inq>D</inq><maxinq>Mx</maxinq>
// <threads>W</threads><idle>I</idle><tcr>C</tcr><tde>X</tde>
// <tlimr>L</tlimr></stats>
type xmlStats struct {
	XMLName xml.Name `xml:"stats"`
	ID      string   `xml:"id,attr"`
	Jobs    int64    `xml:"jobs"`
	InQ     int      `xml:"inq"`
	MaxInQ  int      `xml:"maxinq"`
	Threads int      `xml:"threads"`
	Idle    int      `xml:"idle"`
	TCr     int64    `xml:"tcr"`
	TDe     int64    `xml:"tde"`
	TLimR   int64    `xml:"tlimr"`
}

// StatsSnapshot returns a point-in-time copy of the scheduler's counters.
func (s *Scheduler) StatsSnapshot() Stats {
	s.schedMu.Lock()
	st := Stats{
		Jobs:      s.totalJobs,
		InQueue:   s.inQ,
		MaxInQ:    s.maxQLength,
		Threads:   s.numW,
		Created:   s.totalCreated,
		Destroyed: s.totalDestroy,
		Limited:   s.numLimited,
	}
	s.schedMu.Unlock()

	s.dispatchMu.Lock()
	st.Idle = s.idle
	s.dispatchMu.Unlock()

	return st
}

// Stats writes the XML stats fragment to w and returns the number of bytes
// written. A nil w reports an upper bound on the encoded size without
// writing anything.
func (s *Scheduler) Stats(w io.Writer) (int, error) {
	if w == nil {
		// Every counter at its widest decimal rendering bounds any snapshot.
		widest, err := xml.Marshal(xmlStats{
			ID: "sched", Jobs: math.MaxInt64, InQ: math.MaxInt, MaxInQ: math.MaxInt,
			Threads: math.MaxInt, Idle: math.MaxInt,
			TCr: math.MaxInt64, TDe: math.MaxInt64, TLimR: math.MaxInt64,
		})
		if err != nil {
			return 0, err
		}
		return len(widest), nil
	}

	snap := s.StatsSnapshot()
	body := xmlStats{
		ID:      "sched",
		Jobs:    snap.Jobs,
		InQ:     snap.InQueue,
		MaxInQ:  snap.MaxInQ,
		Threads: snap.Threads,
		Idle:    snap.Idle,
		TCr:     snap.Created,
		TDe:     snap.Destroyed,
		TLimR:   snap.Limited,
	}

	out, err := xml.Marshal(body)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(out)
	return n, err
}
