// Copyright 2024 The DCDS Authors
// This file is part of DCDS.
//
// DCDS is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DCDS is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with DCDS. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the operation harness's commit/abort/retry
// counters through prometheus/client_golang, the same metrics stack
// used to instrument the transaction layer's commit/abort path
// (TxLimit/TxSpill/DbCommitTotal-style counters).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Commits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcds_commits_total",
		Help: "Number of operations that committed.",
	})
	Aborts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcds_aborts_total",
		Help: "Number of operation attempts that aborted, retried or not.",
	})
	LockConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcds_lock_conflicts_total",
		Help: "Number of no-wait lock acquisitions that failed.",
	})
	Retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcds_retries_total",
		Help: "Number of times the operation harness retried after an abort.",
	})
	IndexInsertDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dcds_index_insert_duplicates_total",
		Help: "Number of Index.Insert calls that found an existing key.",
	})
)

func init() {
	prometheus.MustRegister(Commits, Aborts, LockConflicts, Retries, IndexInsertDuplicates)
}
